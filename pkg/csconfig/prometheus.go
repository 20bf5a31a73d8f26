package csconfig

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

type PrometheusCfg struct {
	Enabled    bool   `yaml:"enabled"`
	Level      string `yaml:"level,omitempty"` // aggregated|full
	ListenAddr string `yaml:"listen_addr,omitempty"`
	ListenPort int    `yaml:"listen_port,omitempty"`
}

func (c *Config) LoadPrometheus() error {
	if c.Prometheus == nil {
		c.Prometheus = &PrometheusCfg{}
	}

	pc := c.Prometheus

	switch pc.Level {
	case "":
		pc.Level = "full"
	case "full", "aggregated", "none":
	default:
		return fmt.Errorf("unknown level %q", pc.Level)
	}

	if pc.ListenAddr == "" {
		pc.ListenAddr = "127.0.0.1"
	}

	if pc.ListenPort == 0 {
		pc.ListenPort = 6060
	}

	if pc.ListenPort < 0 || pc.ListenPort > 65535 {
		return errors.New("listen_port out of range")
	}

	return nil
}

// URL is the address of the metrics endpoint.
func (c *PrometheusCfg) URL() string {
	return "http://" + net.JoinHostPort(c.ListenAddr, strconv.Itoa(c.ListenPort)) + "/metrics"
}
