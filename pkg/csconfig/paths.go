package csconfig

import (
	"fmt"
	"path/filepath"
	"time"
)

func ensureAbsolutePath(p *string) error {
	var err error

	if *p == "" {
		return nil
	}

	*p, err = filepath.Abs(*p)
	if err != nil {
		return fmt.Errorf("failed to get absolute path of %q: %w", *p, err)
	}

	return nil
}

// parsePositiveDuration parses a duration directive, filling def when empty.
func parsePositiveDuration(name string, value *string, def string) (time.Duration, error) {
	if *value == "" {
		*value = def
	}

	d, err := time.ParseDuration(*value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}

	return d, nil
}
