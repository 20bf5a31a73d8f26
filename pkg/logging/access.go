package logging

import (
	"github.com/sirupsen/logrus"
)

const accessLogFilename = "sentinel_api.log"

// CreateAccessLogger builds the logger used for HTTP access logging. With
// file media the access log goes to its own rotated file, otherwise it
// shares the destination of the standard logger.
func CreateAccessLogger(cfg LogConfig, level logrus.Level) *logrus.Logger {
	clog := CloneLogger(logrus.StandardLogger(), level)

	if cfg.GetMedia() != "file" {
		return clog
	}

	logrus.Debugf("starting router, logging to %s", accessLogFilename)

	clog.SetOutput(cfg.NewRotatingLogger(accessLogFilename))

	return clog
}

// CloneLogger creates a new *logrus.Logger that inherits the formatter,
// output, and hooks from the given base logger, but can have a different log level.
//
// If level == 0 (panic), the log level is inherited too.
func CloneLogger(base *logrus.Logger, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(base.Formatter)
	l.SetOutput(base.Out)

	for _, hooks := range base.Hooks {
		for _, h := range hooks {
			l.AddHook(h)
		}
	}

	if level == 0 {
		level = base.GetLevel()
	}

	l.SetLevel(level)

	return l
}
