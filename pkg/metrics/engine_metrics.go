package metrics

import "github.com/prometheus/client_golang/prometheus"

const EventsPersistedMetricName = "sentinel_events_persisted_total"

var EventsPersisted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: EventsPersistedMetricName,
		Help: "Events written to the store.",
	},
	[]string{"severity"},
)

const AttacksByTypeMetricName = "sentinel_attacks_total"

var AttacksByType = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: AttacksByTypeMetricName,
		Help: "Classified attacks.",
	},
	[]string{"type", "severity", "service"},
)

const PersistFailuresMetricName = "sentinel_persist_failures_total"

var PersistFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: PersistFailuresMetricName,
		Help: "Events that could not be written to the store.",
	},
)

const EventsNotDispatchedMetricName = "sentinel_events_not_dispatched_total"

var EventsNotDispatched = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: EventsNotDispatchedMetricName,
		Help: "Persisted events dropped because the subscriber queue was full.",
	},
)

const SubscriberFailuresMetricName = "sentinel_subscriber_failures_total"

var SubscriberFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: SubscriberFailuresMetricName,
		Help: "Subscriber calls that returned an error or panicked.",
	},
	[]string{"subscriber"},
)

const EnrichmentCacheSizeMetricName = "sentinel_enrichment_cache_size"

var EnrichmentCacheSize = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: EnrichmentCacheSizeMetricName,
		Help: "Entries in the GeoIP enrichment cache.",
	},
)

const APIRouteHitsMetricName = "sentinel_api_requests_total"

var APIRouteHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: APIRouteHitsMetricName,
		Help: "Number of calls to each route per method.",
	},
	[]string{"route", "method"},
)
