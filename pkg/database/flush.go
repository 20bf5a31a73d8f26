package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/logging"
)

const flushInterval = 1 * time.Minute

// StartFlushScheduler runs the retention job every minute. It returns a
// nil scheduler when no retention is configured.
func (s *Store) StartFlushScheduler(ctx context.Context, config *csconfig.FlushDBCfg) (gocron.Scheduler, error) {
	if config == nil || (config.MaxItems == nil && config.MaxAgeDuration == 0) {
		return nil, nil
	}

	maxItems := 0
	if config.MaxItems != nil {
		maxItems = *config.MaxItems
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logging.GoCronLoggerAdapter{Logger: s.logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("while creating flush scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(flushInterval),
		gocron.NewTask(func() {
			if _, err := s.FlushEvents(ctx, config.MaxAgeDuration, maxItems); err != nil {
				s.logger.WithError(err).Error("flushing events")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("flush-events"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("while starting FlushEvents scheduler: %w", err)
	}

	scheduler.Start()

	return scheduler, nil
}

// FlushEvents deletes events older than maxAge and keeps at most maxItems
// of the most recent ones. Zero disables the matching rule. Alerts of
// deleted events go with them; address aggregates stay.
func (s *Store) FlushEvents(ctx context.Context, maxAge time.Duration, maxItems int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w: %w", err, DeleteFail)
	}

	var deleted int64

	if maxAge > 0 {
		res, err := tx.ExecContext(ctx, `DELETE FROM attacks WHERE timestamp < ?`, formatTime(s.now().Add(-maxAge)))
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("flush by age: %w: %w", err, DeleteFail)
		}

		n, _ := res.RowsAffected()
		deleted += n
	}

	if maxItems > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM attacks WHERE id NOT IN (
				SELECT id FROM attacks ORDER BY timestamp DESC, id DESC LIMIT ?
			)`, maxItems)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("flush by count: %w: %w", err, DeleteFail)
		}

		n, _ := res.RowsAffected()
		deleted += n
	}

	if deleted > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE attack_id NOT IN (SELECT id FROM attacks)`); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("flush orphan alerts: %w: %w", err, DeleteFail)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit flush: %w: %w", err, DeleteFail)
	}

	if deleted > 0 {
		s.logger.Infof("flushed %d events", deleted)
	}

	return deleted, nil
}
