package engine

import (
	"context"
	"errors"

	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/types"
)

// The read side never fails: storage errors are logged and an empty
// result is returned.

// Ping reports whether the store answers. It is the only query that
// surfaces storage errors.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

func (e *Engine) Statistics(ctx context.Context) *types.Statistics {
	stats, err := e.store.Statistics(ctx)
	if err != nil {
		e.logger.Errorf("unable to compute statistics: %s", err)
		return types.NewStatistics()
	}

	return stats
}

func (e *Engine) RecentEvents(ctx context.Context, limit int) []types.AttackEvent {
	events, err := e.store.RecentEvents(ctx, limit)
	if err != nil {
		e.logger.Errorf("unable to list events: %s", err)
		return []types.AttackEvent{}
	}

	return events
}

func (e *Engine) EventsBySource(ctx context.Context, ip string, limit int) []types.AttackEvent {
	events, err := e.store.EventsBySource(ctx, ip, limit)
	if err != nil {
		e.logger.Errorf("unable to list events of %s: %s", ip, err)
		return []types.AttackEvent{}
	}

	return events
}

// Event returns nil when id is unknown or the store failed.
func (e *Engine) Event(ctx context.Context, id int64) *types.AttackEvent {
	evt, err := e.store.Event(ctx, id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			e.logger.Errorf("unable to get event %d: %s", id, err)
		}

		return nil
	}

	return evt
}

func (e *Engine) Alerts(ctx context.Context, limit int) []types.Alert {
	alerts, err := e.store.Alerts(ctx, limit)
	if err != nil {
		e.logger.Errorf("unable to list alerts: %s", err)
		return []types.Alert{}
	}

	return alerts
}

func (e *Engine) IPRecords(ctx context.Context, limit int) []types.IPRecord {
	records, err := e.store.IPRecords(ctx, limit)
	if err != nil {
		e.logger.Errorf("unable to list addresses: %s", err)
		return []types.IPRecord{}
	}

	return records
}

// IPRecord returns nil for an address never seen.
func (e *Engine) IPRecord(ctx context.Context, ip string) *types.IPRecord {
	rec, err := e.store.IPRecord(ctx, ip)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			e.logger.Errorf("unable to get %s: %s", ip, err)
		}

		return nil
	}

	return rec
}

func (e *Engine) IPEnrichment(ctx context.Context, ip string) *types.IPEnrichment {
	enr, err := e.store.IPEnrichment(ctx, ip)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			e.logger.Errorf("unable to get enrichment of %s: %s", ip, err)
		}

		return nil
	}

	return enr
}

// AcknowledgeAlert reports whether the alert exists.
func (e *Engine) AcknowledgeAlert(ctx context.Context, id int64) (bool, error) {
	return e.store.AcknowledgeAlert(ctx, id)
}

// DeleteEvent reports whether the event existed.
func (e *Engine) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	return e.store.DeleteEvent(ctx, id)
}

// ExportAll fails only on an unknown format; a storage failure exports
// nothing.
func (e *Engine) ExportAll(ctx context.Context, format string) ([]byte, error) {
	data, err := e.store.ExportAll(ctx, format)
	if err == nil {
		return data, nil
	}

	if errors.Is(err, database.ErrUnknownFormat) {
		return nil, err
	}

	e.logger.Errorf("unable to export events: %s", err)

	return database.EncodeEvents([]types.AttackEvent{}, format)
}

// ClearAll empties the store, then resets the subscribers that keep
// their own copy of the events.
func (e *Engine) ClearAll(ctx context.Context) error {
	if err := e.store.ClearAll(ctx); err != nil {
		return err
	}

	e.subMu.RLock()
	defer e.subMu.RUnlock()

	for _, s := range e.subscribers {
		if r, ok := s.(Resetter); ok {
			if err := r.Reset(); err != nil {
				e.logger.WithField("subscriber", s.Name()).Warningf("unable to reset: %s", err)
			}
		}
	}

	e.logger.Info("all attack data cleared")

	return nil
}
