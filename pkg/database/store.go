// Package database is the persistent event store: attacks, per-address
// aggregates and alerts, kept in a single SQLite file.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
)

// TimestampFormat is fixed width so that text ordering matches time ordering.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Store is safe for concurrent use. Writes are serialized by a single
// store-wide lock; reads share it and only wait on writers.
type Store struct {
	db     *sql.DB
	cfg    *csconfig.DatabaseCfg
	logger *log.Entry
	mu     sync.RWMutex
	now    func() time.Time
}

func NewStore(ctx context.Context, cfg *csconfig.DatabaseCfg, logger *log.Entry) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no database configuration provided")
	}

	if logger == nil {
		logger = log.StandardLogger().WithField("component", "store")
	}

	if dir := filepath.Dir(cfg.DbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(sqliteDriver, buildSQLiteDSN(cfg.DbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema init: %w", err)
	}

	logger.Debugf("using database %s", cfg.DbPath)

	return &Store{
		db:     db,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Ping checks that the database file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func initializeSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attacks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'connection_attempt',
			source_ip TEXT NOT NULL,
			source_port INTEGER,
			target_port INTEGER,
			simulated_port INTEGER,
			service TEXT,
			payload TEXT,
			payload_size INTEGER DEFAULT 0,
			severity TEXT DEFAULT 'low',
			user_agent TEXT,
			connection_id INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_attacks_timestamp ON attacks(timestamp);
		CREATE INDEX IF NOT EXISTS idx_attacks_source_ip ON attacks(source_ip);
		CREATE INDEX IF NOT EXISTS idx_attacks_severity ON attacks(severity);

		CREATE TABLE IF NOT EXISTS ip_tracking (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ip_address TEXT UNIQUE NOT NULL,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL,
			total_attacks INTEGER DEFAULT 1,
			threat_level TEXT DEFAULT 'low'
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			source_ip TEXT NOT NULL,
			message TEXT,
			severity TEXT DEFAULT 'high',
			is_acknowledged INTEGER DEFAULT 0,
			attack_id INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_attack_id ON alerts(attack_id);

		CREATE TABLE IF NOT EXISTS ip_enrichment (
			ip_address TEXT PRIMARY KEY,
			country TEXT,
			city TEXT,
			as_number INTEGER,
			as_org TEXT,
			ip_range TEXT,
			updated_at TEXT NOT NULL
		);
	`)

	return err
}

func sqlitePath(path string) string {
	p := filepath.ToSlash(path)
	if strings.HasPrefix(p, "//") {
		p = p[1:]
	}

	return p
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// zone-less layouts written by earlier versions of the store (isoformat)
// and by SQLite CURRENT_TIMESTAMP; both hold local time
var naiveTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) time.Time {
	for _, layout := range []string{TimestampFormat, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}

	for _, layout := range naiveTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}
