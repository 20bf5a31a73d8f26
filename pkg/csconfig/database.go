package csconfig

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const DefaultMaxPayloadStore = 5000

type DatabaseCfg struct {
	DbPath          string      `yaml:"db_path,omitempty"`
	MaxOpenConns    int         `yaml:"max_open_conns,omitempty"`
	MaxPayloadStore int         `yaml:"max_payload_store,omitempty"`
	Flush           *FlushDBCfg `yaml:"flush,omitempty"`
}

type FlushDBCfg struct {
	MaxItems *int    `yaml:"max_items,omitempty"`
	MaxAge   *string `yaml:"max_age,omitempty"`

	MaxAgeDuration time.Duration `yaml:"-"`
}

func (c *Config) LoadDBConfig() error {
	if c.DbConfig == nil {
		c.DbConfig = &DatabaseCfg{}
	}

	dc := c.DbConfig

	if dc.DbPath == "" {
		dataDir := "./data"
		if c.Common != nil && c.Common.DataDir != "" {
			dataDir = c.Common.DataDir
		}

		dc.DbPath = filepath.Join(dataDir, "sentinel.db")
	}

	if err := ensureAbsolutePath(&dc.DbPath); err != nil {
		return err
	}

	if dc.MaxOpenConns == 0 {
		dc.MaxOpenConns = 4
	}

	if dc.MaxPayloadStore == 0 {
		dc.MaxPayloadStore = DefaultMaxPayloadStore
	}

	if dc.MaxOpenConns < 0 || dc.MaxPayloadStore < 0 {
		return errors.New("max_open_conns and max_payload_store must be positive")
	}

	if dc.Flush == nil {
		return nil
	}

	if dc.Flush.MaxItems != nil && *dc.Flush.MaxItems <= 0 {
		return errors.New("max_items can't be zero or negative")
	}

	if dc.Flush.MaxAge != nil && *dc.Flush.MaxAge != "" {
		d, err := time.ParseDuration(*dc.Flush.MaxAge)
		if err != nil {
			return fmt.Errorf("invalid flush.max_age: %w", err)
		}

		if d <= 0 {
			return errors.New("flush.max_age must be positive")
		}

		dc.Flush.MaxAgeDuration = d
	}

	return nil
}
