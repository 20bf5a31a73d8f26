// Package metrics holds the prometheus collectors of the honeypot and the engine.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type MetricsLevelConfig string

const (
	MetricsLevelNone       MetricsLevelConfig = "none"
	MetricsLevelAggregated MetricsLevelConfig = "aggregated"
	MetricsLevelFull       MetricsLevelConfig = "full"
	MetricsLevelDefault                       = MetricsLevelFull
)

var ErrInvalidMetricsLevel = errors.New("invalid metrics level")

// low cardinality, safe to expose anywhere
func aggregatedCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		ConnectionsTotal, ConnectionsDropped, BytesReceived, ListenersActive,
		EventsPersisted, PersistFailures, EventsNotDispatched, SubscriberFailures, EnrichmentCacheSize,
	}
}

func fullCollectors() []prometheus.Collector {
	return append(aggregatedCollectors(), AttacksByType, CaptureDuration, APIRouteHits)
}

// RegisterMetrics registers the collectors of the given level on reg.
func RegisterMetrics(reg prometheus.Registerer, metricsLevel MetricsLevelConfig) error {
	var cs []prometheus.Collector

	switch metricsLevel {
	case MetricsLevelNone:
		return nil
	case MetricsLevelAggregated:
		cs = aggregatedCollectors()
	case MetricsLevelFull:
		cs = fullCollectors()
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMetricsLevel, metricsLevel)
	}

	reg.MustRegister(cs...)

	return nil
}
