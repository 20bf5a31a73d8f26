package csconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/crowdsecurity/go-cs-lib/ptr"
)

type HoneypotCfg struct {
	ListenAddr      string `yaml:"listen_addr,omitempty"`
	Ports           []int  `yaml:"ports,omitempty"`
	HighPortMode    *bool  `yaml:"high_port_mode,omitempty"`
	ReadTimeout     string `yaml:"read_timeout,omitempty"`
	AcceptPoll      string `yaml:"accept_poll,omitempty"`
	BindStagger     string `yaml:"bind_stagger,omitempty"`
	ReadChunkSize   int    `yaml:"read_chunk_size,omitempty"`
	MaxPayloadBytes int    `yaml:"max_payload_bytes,omitempty"`
	MaxDecodedLen   int    `yaml:"max_decoded_len,omitempty"`
	MaxConnections  int    `yaml:"max_connections,omitempty"`
	AutoStart       *bool  `yaml:"auto_start,omitempty"`

	ReadTimeoutDuration time.Duration `yaml:"-"`
	AcceptPollDuration  time.Duration `yaml:"-"`
	BindStaggerDuration time.Duration `yaml:"-"`
}

func (c *Config) LoadHoneypot() error {
	if c.Honeypot == nil {
		c.Honeypot = &HoneypotCfg{}
	}

	hc := c.Honeypot

	if hc.HighPortMode == nil {
		hc.HighPortMode = ptr.Of(true)
	}

	if hc.AutoStart == nil {
		hc.AutoStart = ptr.Of(true)
	}

	seen := make(map[int]struct{}, len(hc.Ports))

	for _, port := range hc.Ports {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %d", port)
		}

		if _, ok := seen[port]; ok {
			return fmt.Errorf("port %d is listed twice", port)
		}

		seen[port] = struct{}{}
	}

	var err error

	if hc.ReadTimeoutDuration, err = parsePositiveDuration("read_timeout", &hc.ReadTimeout, "5s"); err != nil {
		return err
	}

	if hc.AcceptPollDuration, err = parsePositiveDuration("accept_poll", &hc.AcceptPoll, "1s"); err != nil {
		return err
	}

	if hc.BindStagger == "" {
		hc.BindStagger = "100ms"
	}

	if hc.BindStaggerDuration, err = time.ParseDuration(hc.BindStagger); err != nil {
		return fmt.Errorf("invalid bind_stagger: %w", err)
	}

	if hc.BindStaggerDuration < 0 {
		return errors.New("bind_stagger can't be negative")
	}

	if hc.ReadChunkSize == 0 {
		hc.ReadChunkSize = 4096
	}

	if hc.MaxPayloadBytes == 0 {
		hc.MaxPayloadBytes = 10000
	}

	if hc.MaxDecodedLen == 0 {
		hc.MaxDecodedLen = 2000
	}

	if hc.ReadChunkSize < 0 || hc.MaxPayloadBytes < 0 || hc.MaxDecodedLen < 0 {
		return errors.New("read_chunk_size, max_payload_bytes and max_decoded_len must be positive")
	}

	if hc.MaxConnections < 0 {
		return errors.New("max_connections can't be negative")
	}

	return nil
}
