package logging

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defLogLevel    = logrus.InfoLevel
	defLogFilename = "sentinel.log"
)

// NewFormatter returns the logrus formatter for a log_format value.
func NewFormatter(format string, forceColors bool) (logrus.Formatter, error) {
	switch format {
	case "text", "":
		return &logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
			ForceColors:     forceColors,
		}, nil
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}, nil
	default:
		return nil, fmt.Errorf("unknown log_format %q", format)
	}
}

func newOutput(cfg LogConfig) (io.Writer, error) {
	switch cfg.GetMedia() {
	case "file":
		return cfg.NewRotatingLogger(defLogFilename), nil
	case "stdout", "":
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("unknown log_media %q", cfg.GetMedia())
	}
}

// SetupStandardLogger configures logrus.StandardLogger(), which every
// component logs through unless given its own logger. Nothing is changed
// when the configuration is invalid.
func SetupStandardLogger(cfg LogConfig, level logrus.Level, forceColors bool) error {
	formatter, err := NewFormatter(cfg.GetFormat(), forceColors)
	if err != nil {
		return err
	}

	out, err := newOutput(cfg)
	if err != nil {
		return err
	}

	logrus.SetOutput(out)
	logrus.SetFormatter(formatter)
	logrus.SetLevel(cmp.Or(level, defLogLevel))

	return nil
}
