package main

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/args"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/require"
	"github.com/sentinelhq/sentinel/pkg/outputs"
)

func askYesNo(message string, defaultAnswer bool) (bool, error) {
	var answer bool

	prompt := &survey.Confirm{
		Message: message,
		Default: defaultAnswer,
	}

	if err := survey.AskOne(prompt, &answer); err != nil {
		return defaultAnswer, err
	}

	return answer, nil
}

func (cli *cliRoot) clear(ctx context.Context, force bool) error {
	cfg := cli.cfg()

	if !force {
		yes, err := askYesNo(fmt.Sprintf("Delete every attack, alert and address in %s?", cfg.DbConfig.DbPath), false)
		if err != nil {
			return err
		}

		if !yes {
			return nil
		}
	}

	store, err := require.Store(ctx, cfg)
	if err != nil {
		return err
	}

	defer store.Close()

	if err := store.ClearAll(ctx); err != nil {
		return fmt.Errorf("unable to clear the database: %w", err)
	}

	log.Info("database cleared")

	if !*cfg.Outputs.LogFile.Enabled {
		return nil
	}

	attackLog, err := outputs.NewFileOutput(cfg.Outputs.LogFile)
	if err != nil {
		return err
	}

	defer attackLog.Close()

	if err := attackLog.Reset(); err != nil {
		return fmt.Errorf("unable to truncate %s: %w", attackLog.Path(), err)
	}

	log.Infof("%s truncated", attackLog.Path())

	return nil
}

func (cli *cliRoot) newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded data",
		Long: `Delete every attack, alert, address record and enrichment, and truncate the attack log.
A running sentinel keeps its GeoIP cache: use the API to clear a live instance.`,
		Args:              args.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.clear(cmd.Context(), force)
		},
	}

	cmd.Flags().BoolVarP(&force, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
