package csconfig

import (
	"cmp"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/crowdsecurity/go-cs-lib/ptr"
)

const (
	defLogMaxSize  = 500
	defLogMaxFiles = 3
	defLogMaxAge   = 28
)

type CommonCfg struct {
	LogMedia       string `yaml:"log_media"`
	LogDir         string `yaml:"log_dir,omitempty"` // if LogMedia = file
	LogLevel       string `yaml:"log_level,omitempty"`
	LogFormat      string `yaml:"log_format,omitempty"`
	LogMaxSize     int    `yaml:"log_max_size,omitempty"`
	LogMaxAge      int    `yaml:"log_max_age,omitempty"`
	LogMaxFiles    int    `yaml:"log_max_files,omitempty"`
	CompressLogs   *bool  `yaml:"compress_logs,omitempty"`
	ForceColorLogs bool   `yaml:"force_color_logs,omitempty"`
	DataDir        string `yaml:"data_dir,omitempty"`

	Level log.Level `yaml:"-"`
}

func (c *Config) LoadCommon() error {
	if c.Common == nil {
		c.Common = &CommonCfg{}
	}

	cc := c.Common

	cc.LogMedia = cmp.Or(cc.LogMedia, "stdout")

	switch cc.LogMedia {
	case "stdout", "file":
	default:
		return fmt.Errorf("unknown log_media %q", cc.LogMedia)
	}

	switch cc.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", cc.LogFormat)
	}

	cc.LogLevel = cmp.Or(cc.LogLevel, "info")

	lvl, err := log.ParseLevel(cc.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	cc.Level = lvl

	cc.LogDir = cmp.Or(cc.LogDir, "./logs")
	cc.DataDir = cmp.Or(cc.DataDir, "./data")

	if err := ensureAbsolutePath(&cc.LogDir); err != nil {
		return err
	}

	if err := ensureAbsolutePath(&cc.DataDir); err != nil {
		return err
	}

	return nil
}

func (c *CommonCfg) GetFormat() string {
	return c.LogFormat
}

func (c *CommonCfg) GetMedia() string {
	return c.LogMedia
}

func (c *CommonCfg) NewRotatingLogger(filename string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, filename),
		MaxSize:    cmp.Or(c.LogMaxSize, defLogMaxSize),
		MaxBackups: cmp.Or(c.LogMaxFiles, defLogMaxFiles),
		MaxAge:     cmp.Or(c.LogMaxAge, defLogMaxAge),
		Compress:   *cmp.Or(c.CompressLogs, ptr.Of(true)),
	}
}
