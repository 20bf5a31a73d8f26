// Package csconfig loads and validates the sentinel configuration file.
package csconfig

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the top-level configuration. Every section is optional in the
// file and receives defaults from its Load function.
type Config struct {
	FilePath   string         `yaml:"-"`
	Common     *CommonCfg     `yaml:"common,omitempty"`
	Honeypot   *HoneypotCfg   `yaml:"honeypot,omitempty"`
	DbConfig   *DatabaseCfg   `yaml:"db_config,omitempty"`
	Outputs    *OutputsCfg    `yaml:"outputs,omitempty"`
	Enrichment *EnrichmentCfg `yaml:"enrichment,omitempty"`
	API        *APICfg        `yaml:"api,omitempty"`
	Prometheus *PrometheusCfg `yaml:"prometheus,omitempty"`
	Cli        *CliCfg        `yaml:"cli,omitempty"`
}

// NewConfig reads, expands and validates a configuration file.
func NewConfig(configFile string) (*Config, error) {
	fcontent, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(fcontent)
	if err != nil {
		return nil, err
	}

	cfg.FilePath = configFile

	return cfg, nil
}

// ParseConfig decodes a configuration document. Environment variables
// ($VAR or ${VAR}) are expanded before decoding, unknown keys are rejected.
func ParseConfig(content []byte) (*Config, error) {
	cfg := &Config{}

	expanded := os.ExpandEnv(string(content))

	if err := yaml.UnmarshalWithOptions([]byte(expanded), cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewDefaultConfig returns a configuration usable without any file.
func NewDefaultConfig() (*Config, error) {
	cfg := &Config{}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load fills defaults and validates every section, in dependency order.
func (c *Config) Load() error {
	loaders := []struct {
		name string
		load func() error
	}{
		{"common", c.LoadCommon},
		{"honeypot", c.LoadHoneypot},
		{"db_config", c.LoadDBConfig},
		{"outputs", c.LoadOutputs},
		{"enrichment", c.LoadEnrichment},
		{"api", c.LoadAPI},
		{"prometheus", c.LoadPrometheus},
		{"cli", c.LoadCLI},
	}

	for _, l := range loaders {
		if err := l.load(); err != nil {
			return fmt.Errorf("%s: %w", l.name, err)
		}
	}

	return nil
}
