package clialerts

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/args"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/cstable"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/require"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/types"
)

type cliAlerts struct {
	cfg csconfig.Getter
}

func New(cfg csconfig.Getter) *cliAlerts {
	return &cliAlerts{
		cfg: cfg,
	}
}

func (cli *cliAlerts) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "alerts [action]",
		Short:             "List and acknowledge pending alerts",
		Args:              args.MinimumNArgs(1),
		Aliases:           []string{"alert"},
		DisableAutoGenTag: true,
	}

	cmd.AddCommand(cli.newListCmd())
	cmd.AddCommand(cli.newAckCmd())

	return cmd
}

func alertsToCSV(out io.Writer, alerts []types.Alert) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"id", "timestamp", "type", "source_ip", "severity", "acknowledged", "attack_id", "message"}); err != nil {
		return err
	}

	for _, a := range alerts {
		row := []string{
			strconv.FormatInt(a.ID, 10),
			a.Timestamp.Format(time.RFC3339),
			a.AlertType.String(),
			a.SourceIP,
			a.Severity.String(),
			strconv.FormatBool(a.Acknowledged),
			strconv.FormatInt(a.AttackID, 10),
			a.Message,
		}

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}

func alertsTable(out io.Writer, wantColor string, alerts []types.Alert) {
	t := cstable.New(out, wantColor)
	t.SetHeaders("ID", "Date", "Source", "Type", "Severity", "Attack", "Message")
	t.SetAlignment(text.AlignRight)

	for _, a := range alerts {
		t.AddRow(
			strconv.FormatInt(a.ID, 10),
			a.Timestamp.Local().Format(time.DateTime),
			a.SourceIP,
			a.AlertType.String(),
			t.Level(a.Severity.String()),
			strconv.FormatInt(a.AttackID, 10),
			a.Message,
		)
	}

	t.Render()
}

func (cli *cliAlerts) list(ctx context.Context, out io.Writer, limit int) error {
	store, err := require.Store(ctx, cli.cfg())
	if err != nil {
		return err
	}

	defer store.Close()

	alerts, err := store.Alerts(ctx, limit)
	if err != nil {
		return fmt.Errorf("unable to list alerts: %w", err)
	}

	cfg := cli.cfg()

	switch cfg.Cli.Output {
	case "raw":
		return alertsToCSV(out, alerts)
	case "json":
		if alerts == nil {
			// avoid returning "null" in json
			alerts = []types.Alert{}
		}

		x, err := json.MarshalIndent(alerts, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(out, string(x))
	case "human":
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No pending alerts")
			return nil
		}

		alertsTable(out, cfg.Cli.Color, alerts)
	}

	return nil
}

func (cli *cliAlerts) newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:               "list",
		Short:             "List alerts that are not acknowledged yet, newest first",
		Example:           `sentinelctl alerts list -n 10`,
		Args:              args.NoArgs,
		Aliases:           []string{"ls"},
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.list(cmd.Context(), cmd.OutOrStdout(), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", database.DefaultQueryLimit, "number of alerts to show")

	return cmd
}

func (cli *cliAlerts) ack(ctx context.Context, rawIDs []string) error {
	ids := make([]int64, 0, len(rawIDs))

	for _, raw := range rawIDs {
		id, err := require.ID(raw)
		if err != nil {
			return err
		}

		ids = append(ids, id)
	}

	store, err := require.Store(ctx, cli.cfg())
	if err != nil {
		return err
	}

	defer store.Close()

	for _, id := range ids {
		found, err := store.AcknowledgeAlert(ctx, id)
		if err != nil {
			return fmt.Errorf("unable to acknowledge alert %d: %w", id, err)
		}

		if !found {
			return fmt.Errorf("alert %d not found", id)
		}

		log.Infof("alert %d acknowledged", id)
	}

	return nil
}

func (cli *cliAlerts) newAckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "ack <id> [id...]",
		Short:             "Acknowledge alerts",
		Example:           `sentinelctl alerts ack 3 4`,
		Args:              args.IDs,
		Aliases:           []string{"acknowledge"},
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ack(cmd.Context(), args)
		},
	}

	return cmd
}
