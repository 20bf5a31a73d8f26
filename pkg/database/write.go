package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentinelhq/sentinel/pkg/types"
)

// RecordEvent persists an event together with its address aggregate and,
// for high severity, its alert. The three effects commit in one
// transaction. It returns the assigned event id.
func (s *Store) RecordEvent(ctx context.Context, evt *types.AttackEvent) (int64, error) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}

	ts := formatTime(evt.Timestamp)
	payload := types.TruncateRunes(evt.Payload, s.cfg.MaxPayloadStore)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w: %w", err, InsertFail)
	}

	id, err := insertEvent(ctx, tx, evt, ts, payload)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := upsertIP(ctx, tx, evt.SourceIP, ts); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if evt.Severity == types.SeverityHigh {
		if err := insertAlert(ctx, tx, evt, id, ts); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit event: %w: %w", err, InsertFail)
	}

	evt.ID = id

	return id, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, evt *types.AttackEvent, ts string, payload string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO attacks (timestamp, type, source_ip, source_port, target_port, simulated_port,
			service, payload, payload_size, severity, user_agent, connection_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts, string(evt.Type), evt.SourceIP, evt.SourcePort, evt.TargetPort, evt.SimulatedPort,
		evt.Service, payload, evt.PayloadSize, string(evt.Severity), evt.UserAgent, int64(evt.ConnectionID))
	if err != nil {
		return 0, fmt.Errorf("insert attack: %w: %w", err, InsertFail)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("attack id: %w: %w", err, InsertFail)
	}

	return id, nil
}

func upsertIP(ctx context.Context, tx *sql.Tx, ip string, ts string) error {
	var total int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO ip_tracking (ip_address, first_seen, last_seen, total_attacks, threat_level)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(ip_address) DO UPDATE SET
			first_seen = MIN(ip_tracking.first_seen, excluded.first_seen),
			last_seen = MAX(ip_tracking.last_seen, excluded.last_seen),
			total_attacks = ip_tracking.total_attacks + 1
		RETURNING total_attacks`,
		ip, ts, ts, string(types.ThreatLevelFor(1))).Scan(&total)
	if err != nil {
		return fmt.Errorf("upsert ip %s: %w: %w", ip, err, UpdateFail)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE ip_tracking SET threat_level = ? WHERE ip_address = ?`,
		string(types.ThreatLevelFor(total)), ip); err != nil {
		return fmt.Errorf("update threat level of %s: %w: %w", ip, err, UpdateFail)
	}

	return nil
}

func insertAlert(ctx context.Context, tx *sql.Tx, evt *types.AttackEvent, attackID int64, ts string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO alerts (timestamp, alert_type, source_ip, message, severity, is_acknowledged, attack_id)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		ts, string(evt.Type), evt.SourceIP, AlertMessage(evt.SourceIP), string(types.SeverityHigh), attackID)
	if err != nil {
		return fmt.Errorf("insert alert: %w: %w", err, InsertFail)
	}

	return nil
}

func AlertMessage(ip string) string {
	return "High severity attack from " + ip
}

// AcknowledgeAlert marks an alert as handled. Acknowledging twice is not an
// error; found is false when no alert has this id.
func (s *Store) AcknowledgeAlert(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %d: %w: %w", id, err, UpdateFail)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %d: %w: %w", id, err, UpdateFail)
	}

	return n > 0, nil
}

// DeleteEvent removes an event and the alert raised for it. Address
// aggregates are left untouched. found is false when nothing was deleted.
func (s *Store) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w: %w", err, DeleteFail)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE attack_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete alerts of attack %d: %w: %w", id, err, DeleteFail)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM attacks WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete attack %d: %w: %w", id, err, DeleteFail)
	}

	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete attack %d: %w: %w", id, err, DeleteFail)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w: %w", err, DeleteFail)
	}

	return n > 0, nil
}

// ClearAll empties every table.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w: %w", err, DeleteFail)
	}

	for _, table := range []string{"alerts", "attacks", "ip_tracking", "ip_enrichment"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear %s: %w: %w", table, err, DeleteFail)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w: %w", err, DeleteFail)
	}

	return nil
}

// SetIPEnrichment stores or replaces the geolocation data of an address.
func (s *Store) SetIPEnrichment(ctx context.Context, e *types.IPEnrichment) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ip_enrichment (ip_address, country, city, as_number, as_org, ip_range, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip_address) DO UPDATE SET
			country = excluded.country,
			city = excluded.city,
			as_number = excluded.as_number,
			as_org = excluded.as_org,
			ip_range = excluded.ip_range,
			updated_at = excluded.updated_at`,
		e.IPAddress, e.Country, e.City, int64(e.ASNumber), e.ASOrg, e.IPRange, formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert enrichment of %s: %w: %w", e.IPAddress, err, InsertFail)
	}

	return nil
}
