package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const defaultConfigPath = "/etc/sentinel/config.yaml"

type Flags struct {
	ConfigFile string

	LogLevel log.Level

	PrintVersion bool
	TestMode     bool
	DisableAPI   bool
	NoAutoStart  bool
	Ports        portList
}

// portList accepts "22,80,443" and may be repeated.
type portList []int

func (p *portList) String() string {
	parts := make([]string, len(*p))
	for i, port := range *p {
		parts[i] = strconv.Itoa(port)
	}

	return strings.Join(parts, ",")
}

func (p *portList) Set(value string) error {
	for field := range strings.SplitSeq(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		port, err := strconv.Atoi(field)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port '%s'", field)
		}

		*p = append(*p, port)
	}

	return nil
}

func parseFlags(argv []string, output io.Writer) (Flags, error) {
	var f Flags

	fs := flag.NewFlagSet("sentinel", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&f.ConfigFile, "c", defaultConfigPath, "configuration file")

	var trace, debug, info, warn, erro, fatal bool
	fs.BoolVar(&trace, "trace", false, "set log level to 'trace' (VERY verbose)")
	fs.BoolVar(&debug, "debug", false, "set log level to 'debug'")
	fs.BoolVar(&info, "info", false, "set log level to 'info'")
	fs.BoolVar(&warn, "warning", false, "set log level to 'warning'")
	fs.BoolVar(&erro, "error", false, "set log level to 'error'")
	fs.BoolVar(&fatal, "fatal", false, "set log level to 'fatal'")

	fs.BoolVar(&f.PrintVersion, "version", false, "display version")
	fs.BoolVar(&f.TestMode, "t", false, "only test configs")
	fs.BoolVar(&f.DisableAPI, "no-api", false, "disable the local API")
	fs.BoolVar(&f.NoAutoStart, "no-autostart", false, "do not start the listeners until asked through the API")
	fs.Var(&f.Ports, "ports", "comma separated list of ports, overrides the configuration")

	if err := fs.Parse(argv); err != nil {
		return f, err
	}

	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected argument '%s'", fs.Arg(0))
	}

	// the most verbose flag wins
	switch {
	case trace:
		f.LogLevel = log.TraceLevel
	case debug:
		f.LogLevel = log.DebugLevel
	case info:
		f.LogLevel = log.InfoLevel
	case warn:
		f.LogLevel = log.WarnLevel
	case erro:
		f.LogLevel = log.ErrorLevel
	case fatal:
		f.LogLevel = log.FatalLevel
	}

	return f, nil
}
