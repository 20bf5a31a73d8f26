package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/fatih/color"
	cc "github.com/ivanpirog/coloredcobra"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sentinelhq/sentinel/cmd/sentinelctl/clialerts"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/cliattacks"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/cliconfig"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/cliips"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/clistats"
	"github.com/sentinelhq/sentinel/cmd/sentinelctl/core/args"
	"github.com/sentinelhq/sentinel/pkg/appversion"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
)

const defaultConfigPath = "/etc/sentinel/config.yaml"

// commands that work without a configuration file
var noNeedConfig = []string{
	"help",
	"completion",
	"version",
}

type cliRoot struct {
	ConfigFilePath string
	outputFormat   string
	outputColor    string
	logTrace       bool
	logDebug       bool
	logInfo        bool
	logWarn        bool
	logErr         bool

	config *csconfig.Config
}

func newCliRoot() *cliRoot {
	return &cliRoot{}
}

// cfg returns the configuration loaded by initialize. It is safe to call
// before, but only after is the value complete.
func (cli *cliRoot) cfg() *csconfig.Config {
	return cli.config
}

func (cli *cliRoot) wantedLogLevel() log.Level {
	switch {
	case cli.logTrace:
		return log.TraceLevel
	case cli.logDebug:
		return log.DebugLevel
	case cli.logInfo:
		return log.InfoLevel
	case cli.logWarn:
		return log.WarnLevel
	case cli.logErr:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func (cli *cliRoot) loadConfig(cmdName string) (*csconfig.Config, error) {
	if slices.Contains(noNeedConfig, cmdName) {
		return csconfig.NewDefaultConfig()
	}

	config, err := csconfig.NewConfig(cli.ConfigFilePath)
	if errors.Is(err, fs.ErrNotExist) && cli.ConfigFilePath == defaultConfigPath {
		log.Debugf("%s not found, using defaults", cli.ConfigFilePath)
		return csconfig.NewDefaultConfig()
	}

	return config, err
}

func (cli *cliRoot) initialize(cmdName string) error {
	log.SetLevel(cli.wantedLogLevel())

	config, err := cli.loadConfig(cmdName)
	if err != nil {
		return err
	}

	if cli.outputFormat != "" {
		config.Cli.Output = cli.outputFormat
	}

	if cli.outputColor != "" {
		config.Cli.Color = cli.outputColor
	}

	// re-validate the command line overrides
	if err := config.LoadCLI(); err != nil {
		return err
	}

	switch config.Cli.Output {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
		log.SetLevel(log.ErrorLevel)
	case "raw":
		log.SetLevel(log.ErrorLevel)
	}

	switch config.Cli.Color {
	case "yes":
		color.NoColor = false
	case "no":
		color.NoColor = true
	}

	cli.config = config

	return nil
}

// topLevelName is the name of the direct child of the root that cmd belongs to.
func topLevelName(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}

	return cmd.Name()
}

func (cli *cliRoot) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Display version",
		Args:              args.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), appversion.FullString())
			return err
		},
	}
}

func (cli *cliRoot) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentinelctl",
		Short: "sentinelctl allows you to inspect the data recorded by sentinel",
		Long: `sentinelctl reads the sentinel database directly.
It lists attacks, alerts and source addresses, exports the data and cleans it up.`,
		Args:              args.NoArgs,
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.initialize(topLevelName(cmd))
		},
	}

	cc.Init(&cc.Config{
		RootCmd:       cmd,
		Headings:      cc.Yellow,
		Commands:      cc.Green + cc.Bold,
		CmdShortDescr: cc.Cyan,
		Example:       cc.Italic,
		ExecName:      cc.Bold,
		Aliases:       cc.Bold + cc.Italic,
		FlagsDataType: cc.White,
		Flags:         cc.Green,
		FlagsDescr:    cc.Cyan,
	})

	cmd.SetOut(color.Output)

	pflags := cmd.PersistentFlags()
	pflags.SortFlags = false

	pflags.StringVarP(&cli.ConfigFilePath, "config", "c", defaultConfigPath, "path to sentinel config file")
	pflags.StringVarP(&cli.outputFormat, "output", "o", "", "Output format: human, json, raw")
	pflags.StringVarP(&cli.outputColor, "color", "", "", "Output color: yes, no, auto")
	pflags.BoolVar(&cli.logDebug, "debug", false, "Set logging to debug")
	pflags.BoolVar(&cli.logInfo, "info", false, "Set logging to info")
	pflags.BoolVar(&cli.logWarn, "warning", false, "Set logging to warning")
	pflags.BoolVar(&cli.logErr, "error", false, "Set logging to error")
	pflags.BoolVar(&cli.logTrace, "trace", false, "Set logging to trace")

	cmd.AddCommand(cli.newVersionCmd())
	cmd.AddCommand(cli.newClearCmd())
	cmd.AddCommand(clistats.New(cli.cfg).NewCommand())
	cmd.AddCommand(cliattacks.New(cli.cfg).NewCommand())
	cmd.AddCommand(clialerts.New(cli.cfg).NewCommand())
	cmd.AddCommand(cliips.New(cli.cfg).NewCommand())
	cmd.AddCommand(cliconfig.New(cli.cfg).NewCommand())

	return cmd
}

func main() {
	// set the formatter asap and worry about level later
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	cmd := newCliRoot().NewCommand()

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
