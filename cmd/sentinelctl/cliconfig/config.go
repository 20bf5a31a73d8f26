package cliconfig

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/args"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
)

type cliConfig struct {
	cfg csconfig.Getter
}

func New(cfg csconfig.Getter) *cliConfig {
	return &cliConfig{
		cfg: cfg,
	}
}

func (cli *cliConfig) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "config [command]",
		Short:             "Allows to view current config",
		Args:              args.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.AddCommand(cli.newShowCmd())

	return cmd
}

// show prints the configuration with every default filled in.
func (cli *cliConfig) show(out io.Writer, key string) error {
	cfg := cli.cfg()

	var value any = cfg

	if key != "" {
		sections := map[string]any{
			"common":     cfg.Common,
			"honeypot":   cfg.Honeypot,
			"db_config":  cfg.DbConfig,
			"outputs":    cfg.Outputs,
			"enrichment": cfg.Enrichment,
			"api":        cfg.API,
			"prometheus": cfg.Prometheus,
			"cli":        cfg.Cli,
		}

		section, ok := sections[key]
		if !ok {
			return fmt.Errorf("unknown section '%s'", key)
		}

		value = section
	}

	switch cfg.Cli.Output {
	case "json":
		x, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize configuration: %w", err)
		}

		fmt.Fprintln(out, string(x))
	default:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)

		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("failed to serialize configuration: %w", err)
		}

		return enc.Close()
	}

	return nil
}

func (cli *cliConfig) newShowCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Displays current config",
		Long:  `Displays the configuration after defaults and environment variables are applied.`,
		Example: `sentinelctl config show
sentinelctl config show --key honeypot`,
		Args:              args.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.show(cmd.OutOrStdout(), key)
		},
	}

	cmd.Flags().StringVarP(&key, "key", "", "", "Display only this section of the configuration")

	return cmd
}
