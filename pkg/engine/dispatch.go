package engine

import (
	"context"
	"fmt"

	"github.com/sentinelhq/sentinel/pkg/metrics"
	"github.com/sentinelhq/sentinel/pkg/types"
)

// submit persists the event and queues it for the subscribers. A failed
// write is logged and dropped, never retried. A full queue drops the
// notification, not the write.
func (e *Engine) submit(ctx context.Context, evt *types.AttackEvent) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	if _, err := e.store.RecordEvent(ctx, evt); err != nil {
		metrics.PersistFailures.Inc()
		e.logger.WithField("src", evt.SourceIP).Errorf("unable to record event: %s", err)

		return
	}

	metrics.EventsPersisted.WithLabelValues(evt.Severity.String()).Inc()
	metrics.AttacksByType.WithLabelValues(evt.Type.String(), evt.Severity.String(), evt.Service).Inc()

	select {
	case <-e.dispatchTomb.Dying():
		e.logger.Debugf("engine is shutting down, event %d not dispatched", evt.ID)
		return
	default:
	}

	select {
	case e.queue <- evt:
	default:
		metrics.EventsNotDispatched.Inc()
		e.logger.WithField("src", evt.SourceIP).Warningf("subscriber queue full, event %d not dispatched", evt.ID)
	}
}

func (e *Engine) dispatchLoop() error {
	ctx := e.dispatchTomb.Context(context.Background())

	for {
		select {
		case evt := <-e.queue:
			e.deliver(ctx, evt)
		case <-e.dispatchTomb.Dying():
			// drain what was persisted before the kill
			for {
				select {
				case evt := <-e.queue:
					e.deliver(context.WithoutCancel(ctx), evt)
				default:
					return nil
				}
			}
		}
	}
}

func (e *Engine) deliver(ctx context.Context, evt *types.AttackEvent) {
	e.subMu.RLock()
	subs := append([]Subscriber(nil), e.subscribers...)
	e.subMu.RUnlock()

	for _, s := range subs {
		if err := e.notify(ctx, s, evt); err != nil {
			metrics.SubscriberFailures.WithLabelValues(s.Name()).Inc()
			e.logger.WithField("subscriber", s.Name()).Warningf("event %d: %s", evt.ID, err)
		}
	}
}

// notify isolates a subscriber: a panic becomes an error.
func (e *Engine) notify(ctx context.Context, s Subscriber, evt *types.AttackEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	// each subscriber gets its own copy
	cp := *evt

	return s.OnEvent(ctx, &cp)
}
