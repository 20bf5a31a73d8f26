package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/appversion"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/logging"
)

// LoadConfig reads the configuration file and applies the command line overrides.
func LoadConfig(configFile string, flags Flags) (*csconfig.Config, error) {
	cConfig, err := csconfig.NewConfig(configFile)
	if errors.Is(err, os.ErrNotExist) && configFile == defaultConfigPath {
		log.Warningf("%s not found, running with the default configuration", configFile)
		cConfig, err = csconfig.NewDefaultConfig()
	}

	if err != nil {
		return nil, err
	}

	if flags.LogLevel != 0 {
		cConfig.Common.Level = flags.LogLevel
		// the API inherits the command line level too
		cConfig.API.Level = flags.LogLevel
	}

	if flags.DisableAPI {
		*cConfig.API.Enabled = false
	}

	if flags.NoAutoStart {
		*cConfig.Honeypot.AutoStart = false
	}

	if len(flags.Ports) > 0 {
		cConfig.Honeypot.Ports = flags.Ports
	}

	return cConfig, nil
}

func run(flags Flags) error {
	if flags.PrintVersion {
		fmt.Print(appversion.FullString())
		return nil
	}

	cConfig, err := LoadConfig(flags.ConfigFile, flags)
	if err != nil {
		return err
	}

	if err := logging.SetupStandardLogger(cConfig.Common, cConfig.Common.Level, cConfig.Common.ForceColorLogs); err != nil {
		return err
	}

	if flags.TestMode {
		log.Infof("Configuration test done")
		return nil
	}

	log.Infof("Sentinel %s", appversion.UserAgent())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, cConfig)
}

func main() {
	// set the formatter asap and worry about level later
	log.SetFormatter(&log.TextFormatter{TimestampFormat: "2006-01-02 15:04:05", FullTimestamp: true})

	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}

	if err != nil {
		log.Fatal(err)
	}

	if err := run(flags); err != nil {
		log.Fatal(err)
	}

	log.Info("Sentinel service shutting down")
}
