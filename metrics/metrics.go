package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics exposes the engine's operational counters. Registered once
// per process on the default registry.
type EngineMetrics struct {
	EventsProcessed   prometheus.Counter
	EventsZeroMatch   prometheus.Counter
	Detections        *prometheus.CounterVec
	RulesLoaded       prometheus.Gauge
	RulesSkipped      prometheus.Gauge
	RulesActive       prometheus.Gauge
	AggregationGroups prometheus.Gauge
}

// New registers the engine metrics with the given registerer. A nil
// registerer uses the process-default registry.
func New(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &EngineMetrics{
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hayabusa_events_processed_total",
			Help: "Total event records evaluated against the rule set.",
		}),
		EventsZeroMatch: factory.NewCounter(prometheus.CounterOpts{
			Name: "hayabusa_events_zero_match_total",
			Help: "Event records that matched no rule (data reduction).",
		}),
		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hayabusa_detections_total",
			Help: "Detections emitted, by effective severity level.",
		}, []string{"level"}),
		RulesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hayabusa_rules_loaded",
			Help: "Rule files compiled successfully at load time.",
		}),
		RulesSkipped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hayabusa_rules_skipped",
			Help: "Rule files rejected at load time.",
		}),
		RulesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hayabusa_rules_active",
			Help: "Rules active after the tuning pass.",
		}),
		AggregationGroups: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hayabusa_aggregation_groups",
			Help: "Distinct aggregation group keys currently tracked.",
		}),
	}
}
