package cliattacks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/template"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/args"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/require"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/types"
)

type cliAttacks struct {
	cfg csconfig.Getter
}

func New(cfg csconfig.Getter) *cliAttacks {
	return &cliAttacks{
		cfg: cfg,
	}
}

func (cli *cliAttacks) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "attacks [action]",
		Short:             "Browse and manage recorded attacks",
		Args:              args.MinimumNArgs(1),
		Aliases:           []string{"attack"},
		DisableAutoGenTag: true,
	}

	cmd.AddCommand(cli.newListCmd())
	cmd.AddCommand(cli.newInspectCmd())
	cmd.AddCommand(cli.newDeleteCmd())
	cmd.AddCommand(cli.newExportCmd())

	return cmd
}

func (cli *cliAttacks) withStore(ctx context.Context, fn func(*database.Store) error) error {
	store, err := require.Store(ctx, cli.cfg())
	if err != nil {
		return err
	}

	defer store.Close()

	return fn(store)
}

func (cli *cliAttacks) list(ctx context.Context, out io.Writer, limit int, sourceIP string) error {
	return cli.withStore(ctx, func(store *database.Store) error {
		var (
			events []types.AttackEvent
			err    error
		)

		if sourceIP != "" {
			events, err = store.EventsBySource(ctx, sourceIP, limit)
		} else {
			events, err = store.RecentEvents(ctx, limit)
		}

		if err != nil {
			return fmt.Errorf("unable to list attacks: %w", err)
		}

		cfg := cli.cfg()

		switch cfg.Cli.Output {
		case "raw":
			raw, err := database.EncodeEvents(events, database.FormatCSV)
			if err != nil {
				return err
			}

			_, err = out.Write(raw)

			return err
		case "json":
			if events == nil {
				events = []types.AttackEvent{}
			}

			x, err := json.MarshalIndent(events, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(out, string(x))
		case "human":
			if len(events) == 0 {
				fmt.Fprintln(out, "No attacks recorded")
				return nil
			}

			attacksTable(out, cfg.Cli.Color, events)
		}

		return nil
	})
}

func (cli *cliAttacks) newListCmd() *cobra.Command {
	var (
		limit    int
		sourceIP string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent attacks",
		Example: `sentinelctl attacks list
sentinelctl attacks list -n 200
sentinelctl attacks list --ip 203.0.113.7`,
		Args:              args.NoArgs,
		Aliases:           []string{"ls"},
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.list(cmd.Context(), cmd.OutOrStdout(), limit, sourceIP)
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.IntVarP(&limit, "limit", "n", database.DefaultQueryLimit, "number of attacks to show")
	flags.StringVar(&sourceIP, "ip", "", "only show attacks from this source address")

	return cmd
}

const attackTemplate = `
 - ID             : {{.ID}}
 - Date           : {{.Timestamp.Format "2006-01-02T15:04:05Z07:00"}}
 - Type           : {{.Type}}
 - Severity       : {{.Severity}}
 - Source         : {{.SourceIP}}:{{.SourcePort}}
 - Port           : {{.TargetPort}}{{if ne .SimulatedPort .TargetPort}} (simulating {{.SimulatedPort}}){{end}}
 - Service        : {{.Service}}
 - Connection     : {{.ConnectionID}}
{{- if .UserAgent}}
 - User-Agent     : {{.UserAgent}}
{{- end}}
 - Payload size   : {{.PayloadSize}}
`

func displayAttack(out io.Writer, evt *types.AttackEvent) error {
	tmpl, err := template.New("attack").Parse(attackTemplate)
	if err != nil {
		return err
	}

	if err := tmpl.Execute(out, evt); err != nil {
		return err
	}

	if evt.Payload != "" {
		fmt.Fprintf(out, "\n - Payload:\n\n%s\n", evt.Payload)
	}

	return nil
}

func (cli *cliAttacks) inspect(ctx context.Context, out io.Writer, rawID string) error {
	id, err := require.ID(rawID)
	if err != nil {
		return err
	}

	return cli.withStore(ctx, func(store *database.Store) error {
		evt, err := store.Event(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("attack %d not found", id)
		}

		if err != nil {
			return fmt.Errorf("unable to get attack %d: %w", id, err)
		}

		switch cli.cfg().Cli.Output {
		case "json", "raw":
			x, err := json.MarshalIndent(evt, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(out, string(x))
		default:
			return displayAttack(out, evt)
		}

		return nil
	})
}

func (cli *cliAttacks) newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "inspect <id>",
		Short:             "Show the details of one attack",
		Example:           `sentinelctl attacks inspect 42`,
		Args:              args.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.inspect(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	return cmd
}

func (cli *cliAttacks) delete(ctx context.Context, rawIDs []string) error {
	ids := make([]int64, 0, len(rawIDs))

	for _, raw := range rawIDs {
		id, err := require.ID(raw)
		if err != nil {
			return err
		}

		ids = append(ids, id)
	}

	return cli.withStore(ctx, func(store *database.Store) error {
		var errs []error

		for _, id := range ids {
			found, err := store.DeleteEvent(ctx, id)

			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("attack %d: %w", id, err))
			case !found:
				log.Warningf("attack %d not found", id)
			default:
				log.Infof("attack %d deleted", id)
			}
		}

		return errors.Join(errs...)
	})
}

func (cli *cliAttacks) newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "delete <id> [id...]",
		Short:             "Delete attacks and their alerts",
		Example:           `sentinelctl attacks delete 12 13`,
		Args:              args.IDs,
		Aliases:           []string{"remove"},
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.delete(cmd.Context(), args)
		},
	}

	return cmd
}

func (cli *cliAttacks) export(ctx context.Context, out io.Writer, format string, file string) error {
	return cli.withStore(ctx, func(store *database.Store) error {
		data, err := store.ExportAll(ctx, format)
		if err != nil {
			return fmt.Errorf("unable to export: %w", err)
		}

		if file == "" || file == "-" {
			_, err = out.Write(data)
			return err
		}

		if err := os.WriteFile(file, data, 0o600); err != nil {
			return fmt.Errorf("unable to write %s: %w", file, err)
		}

		log.Infof("attacks exported to %s", file)

		return nil
	})
}

func (cli *cliAttacks) newExportCmd() *cobra.Command {
	var (
		format string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every recorded attack",
		Example: `sentinelctl attacks export --format csv --file attacks.csv
sentinelctl attacks export > attacks.json`,
		Args:              args.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.export(cmd.Context(), cmd.OutOrStdout(), format, file)
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&format, "format", "f", database.FormatJSON, "export format: json, csv")
	flags.StringVar(&file, "file", "", "write to this file instead of stdout")

	return cmd
}
