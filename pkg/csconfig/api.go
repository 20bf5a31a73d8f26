package csconfig

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/crowdsecurity/go-cs-lib/ptr"
)

// APICfg configures the local HTTP control and query API.
type APICfg struct {
	Enabled   *bool  `yaml:"enabled,omitempty"`
	ListenURI string `yaml:"listen_uri,omitempty"`
	LogLevel  string `yaml:"log_level,omitempty"`
	// AllowControl exposes start and stop of the listeners.
	AllowControl *bool `yaml:"allow_control,omitempty"`

	Level log.Level `yaml:"-"`
}

func (c *Config) LoadAPI() error {
	if c.API == nil {
		c.API = &APICfg{}
	}

	ac := c.API

	if ac.Enabled == nil {
		ac.Enabled = ptr.Of(true)
	}

	if ac.AllowControl == nil {
		ac.AllowControl = ptr.Of(true)
	}

	if ac.ListenURI == "" {
		ac.ListenURI = "127.0.0.1:8081"
	}

	if _, _, err := net.SplitHostPort(ac.ListenURI); err != nil {
		return fmt.Errorf("invalid listen_uri %q: %w", ac.ListenURI, err)
	}

	// inherit the common level unless overridden
	if ac.LogLevel == "" {
		if c.Common != nil {
			ac.Level = c.Common.Level
		}

		return nil
	}

	lvl, err := log.ParseLevel(ac.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	ac.Level = lvl

	return nil
}
