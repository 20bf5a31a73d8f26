package clistats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/crowdsecurity/go-cs-lib/maptools"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/args"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/cstable"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/require"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/types"
)

type cliStats struct {
	cfg csconfig.Getter
}

func New(cfg csconfig.Getter) *cliStats {
	return &cliStats{
		cfg: cfg,
	}
}

func countTable(out io.Writer, wantColor string, title string, header string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}

	t := cstable.NewLight(out, wantColor)
	t.SetTitle(title)
	t.SetHeaders(header, "Count")
	t.SetAlignment(text.AlignLeft, text.AlignRight)

	for _, k := range maptools.SortedKeys(counts) {
		t.AddRow(k, strconv.FormatInt(counts[k], 10))
	}

	t.Render()
}

func statsTables(out io.Writer, wantColor string, stats *types.Statistics) {
	fmt.Fprintf(out, "Total attacks  : %d\nUnique sources : %d\nPending alerts : %d\n\n",
		stats.TotalAttacks, stats.UniqueIPs, stats.PendingAlerts)

	countTable(out, wantColor, "By type", "Type", stats.ByType)
	countTable(out, wantColor, "By severity", "Severity", stats.BySeverity)

	if len(stats.ByPort) > 0 {
		t := cstable.NewLight(out, wantColor)
		t.SetTitle("Top ports")
		t.SetHeaders("Port", "Count")
		t.SetAlignment(text.AlignRight, text.AlignRight)

		for _, pc := range stats.ByPort {
			t.AddRow(strconv.Itoa(pc.Port), strconv.FormatInt(pc.Count, 10))
		}

		t.Render()
	}

	if len(stats.TopAttackers) > 0 {
		t := cstable.NewLight(out, wantColor)
		t.SetTitle("Top attackers")
		t.SetHeaders("IP", "Count")
		t.SetAlignment(text.AlignLeft, text.AlignRight)

		for _, ic := range stats.TopAttackers {
			t.AddRow(ic.IP, strconv.FormatInt(ic.Count, 10))
		}

		t.Render()
	}

	countTable(out, wantColor, "Last 24 hours", "Hour", stats.Hourly)
}

func (cli *cliStats) show(ctx context.Context, out io.Writer) error {
	store, err := require.Store(ctx, cli.cfg())
	if err != nil {
		return err
	}

	defer store.Close()

	stats, err := store.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("unable to compute statistics: %w", err)
	}

	cfg := cli.cfg()

	switch cfg.Cli.Output {
	case "json", "raw":
		x, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(out, string(x))
	default:
		statsTables(out, cfg.Cli.Color, stats)
	}

	return nil
}

func (cli *cliStats) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "stats",
		Short:             "Display attack statistics",
		Args:              args.NoArgs,
		Aliases:           []string{"statistics"},
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.show(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}
