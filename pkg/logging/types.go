package logging

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig interface {
	GetFormat() string
	GetMedia() string
	NewRotatingLogger(filename string) *lumberjack.Logger
}

// ExtLogger is a common interface for logrus.Logger and logrus.Entry.
// Much like Ext1FieldLogger from logrus.go, it says not to use it, yet it's currently the best option.
type ExtLogger interface {
	logrus.FieldLogger
	Tracef(format string, args ...any)
	Trace(args ...any)
	Traceln(args ...any)
}

// GoCronLoggerAdapter routes scheduler messages to a logrus logger. The
// scheduler passes key/value pairs after the message, they become fields.
type GoCronLoggerAdapter struct {
	Logger ExtLogger
}

func (a GoCronLoggerAdapter) entry(args []any) logrus.FieldLogger {
	if len(args) < 2 {
		return a.Logger
	}

	fields := logrus.Fields{}

	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			fields[k] = args[i+1]
		}
	}

	return a.Logger.WithFields(fields)
}

func (a GoCronLoggerAdapter) Debug(msg string, args ...any) {
	a.entry(args).Debug(msg)
}

func (a GoCronLoggerAdapter) Info(msg string, args ...any) {
	a.entry(args).Info(msg)
}

func (a GoCronLoggerAdapter) Warn(msg string, args ...any) {
	a.entry(args).Warn(msg)
}

func (a GoCronLoggerAdapter) Error(msg string, args ...any) {
	a.entry(args).Error(msg)
}
