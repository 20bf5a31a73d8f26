// Package require holds the preconditions shared by sentinelctl commands.
package require

import (
	"context"
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
)

// Store opens the database read-write. It refuses to create a new one.
func Store(ctx context.Context, c *csconfig.Config) (*database.Store, error) {
	if _, err := os.Stat(c.DbConfig.DbPath); err != nil {
		return nil, fmt.Errorf("no database at %s (is sentinel configured with '%s'?): %w", c.DbConfig.DbPath, c.FilePath, err)
	}

	store, err := database.NewStore(ctx, c.DbConfig, log.WithField("module", "db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return store, nil
}

// ID parses a positive row id.
func ID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id '%s'", s)
	}

	return id, nil
}
