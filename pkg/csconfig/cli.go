package csconfig

import (
	"cmp"
	"fmt"
)

// Getter hands the loaded configuration to commands that are built before it is read.
type Getter func() *Config

// CliCfg holds the sentinelctl defaults.
type CliCfg struct {
	Output string `yaml:"output,omitempty"`
	Color  string `yaml:"color,omitempty"`
}

func (c *Config) LoadCLI() error {
	if c.Cli == nil {
		c.Cli = &CliCfg{}
	}

	c.Cli.Output = cmp.Or(c.Cli.Output, "human")
	c.Cli.Color = cmp.Or(c.Cli.Color, "auto")

	switch c.Cli.Output {
	case "human", "json", "raw":
	default:
		return fmt.Errorf("output format '%s' unknown", c.Cli.Output)
	}

	switch c.Cli.Color {
	case "yes", "no", "auto":
	default:
		return fmt.Errorf("output color '%s' unknown", c.Cli.Color)
	}

	return nil
}
