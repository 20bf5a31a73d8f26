package cliips

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/args"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/cstable"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/require"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/types"
)

// recent attacks shown by inspect
const inspectEvents = 10

type cliIPs struct {
	cfg csconfig.Getter
}

func New(cfg csconfig.Getter) *cliIPs {
	return &cliIPs{
		cfg: cfg,
	}
}

func (cli *cliIPs) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "ips [action]",
		Short:             "Show the source addresses seen by the honeypot",
		Args:              args.MinimumNArgs(1),
		Aliases:           []string{"ip"},
		DisableAutoGenTag: true,
	}

	cmd.AddCommand(cli.newListCmd())
	cmd.AddCommand(cli.newInspectCmd())

	return cmd
}

func recordsTable(out io.Writer, wantColor string, records []types.IPRecord) {
	t := cstable.New(out, wantColor)
	t.SetHeaders("IP", "Attacks", "Threat", "First seen", "Last seen")
	t.SetAlignment(text.AlignLeft, text.AlignRight)

	for _, r := range records {
		t.AddRow(
			r.IPAddress,
			strconv.FormatInt(r.TotalAttacks, 10),
			t.Level(r.ThreatLevel.String()),
			r.FirstSeen.Local().Format(time.DateTime),
			r.LastSeen.Local().Format(time.DateTime),
		)
	}

	t.Render()
}

func (cli *cliIPs) list(ctx context.Context, out io.Writer, limit int) error {
	store, err := require.Store(ctx, cli.cfg())
	if err != nil {
		return err
	}

	defer store.Close()

	records, err := store.IPRecords(ctx, limit)
	if err != nil {
		return fmt.Errorf("unable to list addresses: %w", err)
	}

	cfg := cli.cfg()

	switch cfg.Cli.Output {
	case "raw":
		w := csv.NewWriter(out)
		_ = w.Write([]string{"ip_address", "total_attacks", "threat_level", "first_seen", "last_seen"})

		for _, r := range records {
			_ = w.Write([]string{
				r.IPAddress,
				strconv.FormatInt(r.TotalAttacks, 10),
				r.ThreatLevel.String(),
				r.FirstSeen.Format(time.RFC3339),
				r.LastSeen.Format(time.RFC3339),
			})
		}

		w.Flush()

		return w.Error()
	case "json":
		if records == nil {
			records = []types.IPRecord{}
		}

		x, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(out, string(x))
	case "human":
		if len(records) == 0 {
			fmt.Fprintln(out, "No source address recorded")
			return nil
		}

		recordsTable(out, cfg.Cli.Color, records)
	}

	return nil
}

func (cli *cliIPs) newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:               "list",
		Short:             "List source addresses by number of attacks",
		Args:              args.NoArgs,
		Aliases:           []string{"ls"},
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.list(cmd.Context(), cmd.OutOrStdout(), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", database.DefaultQueryLimit, "number of addresses to show")

	return cmd
}

type ipDetail struct {
	*types.IPRecord
	Enrichment *types.IPEnrichment `json:"enrichment,omitempty"`
	Recent     []types.AttackEvent `json:"recent_attacks"`
}

func (cli *cliIPs) inspect(ctx context.Context, out io.Writer, ip string) error {
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid address '%s'", ip)
	}

	store, err := require.Store(ctx, cli.cfg())
	if err != nil {
		return err
	}

	defer store.Close()

	record, err := store.IPRecord(ctx, ip)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s has never been seen", ip)
	}

	if err != nil {
		return fmt.Errorf("unable to get %s: %w", ip, err)
	}

	detail := ipDetail{IPRecord: record}

	// enrichment is optional
	detail.Enrichment, err = store.IPEnrichment(ctx, ip)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("unable to get enrichment of %s: %w", ip, err)
	}

	if detail.Recent, err = store.EventsBySource(ctx, ip, inspectEvents); err != nil {
		return fmt.Errorf("unable to get attacks of %s: %w", ip, err)
	}

	cfg := cli.cfg()

	if cfg.Cli.Output != "human" {
		if detail.Recent == nil {
			detail.Recent = []types.AttackEvent{}
		}

		x, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(out, string(x))

		return nil
	}

	recordsTable(out, cfg.Cli.Color, []types.IPRecord{*record})

	if e := detail.Enrichment; e != nil {
		fmt.Fprintf(out, " - Country : %s\n - City    : %s\n - AS      : %d %s\n - Range   : %s\n\n",
			e.Country, e.City, e.ASNumber, e.ASOrg, e.IPRange)
	}

	t := cstable.NewLight(out, cfg.Cli.Color)
	t.SetTitle("Recent attacks")
	t.SetHeaders("ID", "Date", "Port", "Type", "Severity")

	for _, evt := range detail.Recent {
		t.AddRow(
			strconv.FormatInt(evt.ID, 10),
			evt.Timestamp.Local().Format(time.DateTime),
			strconv.Itoa(evt.TargetPort),
			evt.Type.String(),
			t.Level(evt.Severity.String()),
		)
	}

	t.Render()

	return nil
}

func (cli *cliIPs) newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "inspect <ip>",
		Short:             "Show the history and geolocation of an address",
		Example:           `sentinelctl ips inspect 203.0.113.7`,
		Args:              args.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.inspect(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	return cmd
}
