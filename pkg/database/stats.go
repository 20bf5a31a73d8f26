package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sentinelhq/sentinel/pkg/types"
)

const topN = 10

// Statistics aggregates the whole store in one read transaction.
func (s *Store) Statistics(ctx context.Context) (*types.Statistics, error) {
	cutoff := formatTime(s.now().Add(-24 * time.Hour))

	return withReadRetry(ctx, s, func() (*types.Statistics, error) {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return nil, fmt.Errorf("begin: %w: %w", err, QueryFail)
		}
		defer tx.Rollback() //nolint:errcheck

		stats := types.NewStatistics()

		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT source_ip) FROM attacks`).
			Scan(&stats.TotalAttacks, &stats.UniqueIPs); err != nil {
			return nil, fmt.Errorf("count attacks: %w: %w", err, QueryFail)
		}

		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE is_acknowledged = 0`).
			Scan(&stats.PendingAlerts); err != nil {
			return nil, fmt.Errorf("count alerts: %w: %w", err, QueryFail)
		}

		if err := countBy(ctx, tx, `SELECT type, COUNT(*) FROM attacks GROUP BY type`, stats.ByType); err != nil {
			return nil, err
		}

		if err := countBy(ctx, tx, `SELECT severity, COUNT(*) FROM attacks GROUP BY severity`, stats.BySeverity); err != nil {
			return nil, err
		}

		if err := countBy(ctx, tx, `
			SELECT substr(timestamp, 12, 2) AS hour, COUNT(*) FROM attacks
			WHERE timestamp >= ? GROUP BY hour`, stats.Hourly, cutoff); err != nil {
			return nil, err
		}

		if stats.ByPort, err = topPorts(ctx, tx); err != nil {
			return nil, err
		}

		if stats.TopAttackers, err = topAttackers(ctx, tx); err != nil {
			return nil, err
		}

		return stats, nil
	})
}

func countBy(ctx context.Context, tx *sql.Tx, query string, into map[string]int64, args ...any) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("group query: %w: %w", err, QueryFail)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   sql.NullString
			count int64
		)

		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan group: %w: %w", err, QueryFail)
		}

		into[key.String] += count
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("group rows: %w: %w", err, QueryFail)
	}

	return nil
}

func topPorts(ctx context.Context, tx *sql.Tx) ([]types.PortCount, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT target_port, COUNT(*) AS c FROM attacks
		GROUP BY target_port ORDER BY c DESC, target_port ASC LIMIT ?`, topN)
	if err != nil {
		return nil, fmt.Errorf("port query: %w: %w", err, QueryFail)
	}
	defer rows.Close()

	ret := make([]types.PortCount, 0, topN)

	for rows.Next() {
		var (
			port sql.NullInt64
			pc   types.PortCount
		)

		if err := rows.Scan(&port, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan port: %w: %w", err, QueryFail)
		}

		pc.Port = int(port.Int64)
		ret = append(ret, pc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("port rows: %w: %w", err, QueryFail)
	}

	return ret, nil
}

func topAttackers(ctx context.Context, tx *sql.Tx) ([]types.IPCount, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT source_ip, COUNT(*) AS c FROM attacks
		GROUP BY source_ip ORDER BY c DESC, source_ip ASC LIMIT ?`, topN)
	if err != nil {
		return nil, fmt.Errorf("attacker query: %w: %w", err, QueryFail)
	}
	defer rows.Close()

	ret := make([]types.IPCount, 0, topN)

	for rows.Next() {
		var ic types.IPCount

		if err := rows.Scan(&ic.IP, &ic.Count); err != nil {
			return nil, fmt.Errorf("scan attacker: %w: %w", err, QueryFail)
		}

		ret = append(ret, ic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attacker rows: %w: %w", err, QueryFail)
	}

	return ret, nil
}
