package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sentinelhq/sentinel/pkg/types"
)

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 5000
	readRetries       = 3
)

// clampLimit caps limit at MaxQueryLimit. Zero or negative means no rows.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 0
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return limit
	}
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}

	if IsSqliteBusyError(err) {
		return true
	}

	errStr := err.Error()

	return strings.Contains(errStr, "SQLITE_BUSY") || strings.Contains(errStr, "database is locked")
}

// withReadRetry runs a read under the shared lock, retrying while the file is busy.
func withReadRetry[T any](ctx context.Context, s *Store, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		ret, err := op()
		if err != nil && !isBusy(err) {
			return ret, backoff.Permanent(err)
		}

		if err != nil {
			s.logger.WithError(err).Debug("retrying read after SQLITE_BUSY")
		}

		return ret, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(readRetries))
}

const eventColumns = `id, timestamp, type, source_ip, source_port, target_port, simulated_port,
	service, payload, payload_size, severity, user_agent, connection_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (types.AttackEvent, error) {
	var (
		evt                          types.AttackEvent
		ts, attackType, ip, severity string
		service, payload, userAgent  sql.NullString
		srcPort, dstPort, simPort    sql.NullInt64
		size, connID                 sql.NullInt64
	)

	if err := row.Scan(&evt.ID, &ts, &attackType, &ip, &srcPort, &dstPort, &simPort,
		&service, &payload, &size, &severity, &userAgent, &connID); err != nil {
		return evt, err
	}

	evt.Timestamp = parseTime(ts)
	evt.Type = types.ParseAttackType(attackType)
	evt.SourceIP = ip
	evt.SourcePort = int(srcPort.Int64)
	evt.TargetPort = int(dstPort.Int64)
	evt.SimulatedPort = int(simPort.Int64)
	evt.Service = service.String
	evt.Payload = payload.String
	evt.PayloadSize = int(size.Int64)
	evt.Severity = types.ParseSeverity(severity)
	evt.UserAgent = userAgent.String
	evt.ConnectionID = uint64(connID.Int64)

	return evt, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]types.AttackEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attacks: %w: %w", err, QueryFail)
	}
	defer rows.Close()

	ret := make([]types.AttackEvent, 0)

	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attack: %w: %w", err, QueryFail)
		}

		ret = append(ret, evt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attack rows: %w: %w", err, QueryFail)
	}

	return ret, nil
}

// RecentEvents returns at most limit events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]types.AttackEvent, error) {
	limit = clampLimit(limit)
	if limit == 0 {
		return []types.AttackEvent{}, nil
	}

	return withReadRetry(ctx, s, func() ([]types.AttackEvent, error) {
		return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM attacks ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	})
}

// EventsBySource returns the most recent events of one address, newest first.
func (s *Store) EventsBySource(ctx context.Context, ip string, limit int) ([]types.AttackEvent, error) {
	limit = clampLimit(limit)
	if limit == 0 {
		return []types.AttackEvent{}, nil
	}

	return withReadRetry(ctx, s, func() ([]types.AttackEvent, error) {
		return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM attacks WHERE source_ip = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, ip, limit)
	})
}

// Event returns one event by id.
func (s *Store) Event(ctx context.Context, id int64) (*types.AttackEvent, error) {
	return withReadRetry(ctx, s, func() (*types.AttackEvent, error) {
		evt, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM attacks WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attack %d: %w", id, ErrNotFound)
		}

		if err != nil {
			return nil, fmt.Errorf("query attack %d: %w: %w", id, err, QueryFail)
		}

		return &evt, nil
	})
}

// Alerts returns unacknowledged alerts, newest first.
func (s *Store) Alerts(ctx context.Context, limit int) ([]types.Alert, error) {
	limit = clampLimit(limit)
	if limit == 0 {
		return []types.Alert{}, nil
	}

	return withReadRetry(ctx, s, func() ([]types.Alert, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, timestamp, alert_type, source_ip, message, severity, is_acknowledged, attack_id
			FROM alerts WHERE is_acknowledged = 0
			ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
		if err != nil {
			return nil, fmt.Errorf("query alerts: %w: %w", err, QueryFail)
		}
		defer rows.Close()

		ret := make([]types.Alert, 0)

		for rows.Next() {
			var (
				a                       types.Alert
				ts, alertType, severity string
				message                 sql.NullString
				attackID                sql.NullInt64
			)

			if err := rows.Scan(&a.ID, &ts, &alertType, &a.SourceIP, &message, &severity, &a.Acknowledged, &attackID); err != nil {
				return nil, fmt.Errorf("scan alert: %w: %w", err, QueryFail)
			}

			a.Timestamp = parseTime(ts)
			a.AlertType = types.ParseAttackType(alertType)
			a.Message = message.String
			a.Severity = types.ParseSeverity(severity)
			a.AttackID = attackID.Int64

			ret = append(ret, a)
		}

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("alert rows: %w: %w", err, QueryFail)
		}

		return ret, nil
	})
}

// IPRecords returns address aggregates, most active first.
func (s *Store) IPRecords(ctx context.Context, limit int) ([]types.IPRecord, error) {
	limit = clampLimit(limit)
	if limit == 0 {
		return []types.IPRecord{}, nil
	}

	return withReadRetry(ctx, s, func() ([]types.IPRecord, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT ip_address, first_seen, last_seen, total_attacks, threat_level
			FROM ip_tracking ORDER BY total_attacks DESC, ip_address ASC LIMIT ?`, limit)
		if err != nil {
			return nil, fmt.Errorf("query ip_tracking: %w: %w", err, QueryFail)
		}
		defer rows.Close()

		ret := make([]types.IPRecord, 0)

		for rows.Next() {
			var (
				r                  types.IPRecord
				first, last, level string
			)

			if err := rows.Scan(&r.IPAddress, &first, &last, &r.TotalAttacks, &level); err != nil {
				return nil, fmt.Errorf("scan ip_tracking: %w: %w", err, QueryFail)
			}

			r.FirstSeen = parseTime(first)
			r.LastSeen = parseTime(last)
			r.ThreatLevel = types.ParseThreatLevel(level)

			ret = append(ret, r)
		}

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("ip_tracking rows: %w: %w", err, QueryFail)
		}

		return ret, nil
	})
}

// IPRecord returns the aggregate of one address.
func (s *Store) IPRecord(ctx context.Context, ip string) (*types.IPRecord, error) {
	return withReadRetry(ctx, s, func() (*types.IPRecord, error) {
		var (
			r                  types.IPRecord
			first, last, level string
		)

		err := s.db.QueryRowContext(ctx, `
			SELECT ip_address, first_seen, last_seen, total_attacks, threat_level
			FROM ip_tracking WHERE ip_address = ?`, ip).Scan(&r.IPAddress, &first, &last, &r.TotalAttacks, &level)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ip %s: %w", ip, ErrNotFound)
		}

		if err != nil {
			return nil, fmt.Errorf("query ip %s: %w: %w", ip, err, QueryFail)
		}

		r.FirstSeen = parseTime(first)
		r.LastSeen = parseTime(last)
		r.ThreatLevel = types.ParseThreatLevel(level)

		return &r, nil
	})
}

// IPEnrichment returns the geolocation data stored for an address.
func (s *Store) IPEnrichment(ctx context.Context, ip string) (*types.IPEnrichment, error) {
	return withReadRetry(ctx, s, func() (*types.IPEnrichment, error) {
		var (
			e                             types.IPEnrichment
			country, city, asOrg, ipRange sql.NullString
			asNumber                      sql.NullInt64
			updated                       string
		)

		err := s.db.QueryRowContext(ctx, `
			SELECT ip_address, country, city, as_number, as_org, ip_range, updated_at
			FROM ip_enrichment WHERE ip_address = ?`, ip).Scan(&e.IPAddress, &country, &city, &asNumber, &asOrg, &ipRange, &updated)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("enrichment of %s: %w", ip, ErrNotFound)
		}

		if err != nil {
			return nil, fmt.Errorf("query enrichment of %s: %w: %w", ip, err, QueryFail)
		}

		e.Country = country.String
		e.City = city.String
		e.ASNumber = uint(asNumber.Int64)
		e.ASOrg = asOrg.String
		e.IPRange = ipRange.String
		e.UpdatedAt = parseTime(updated)

		return &e, nil
	})
}
