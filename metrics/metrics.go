package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// CyclesTotal counts completed fetch cycles by outcome.
	CyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityguard",
		Subsystem: "pipeline",
		Name:      "cycles_total",
		Help:      "Total number of fetch cycles run, labeled by result.",
	}, []string{"result"})

	// CyclesSkipped counts ticks skipped because a cycle was still running.
	CyclesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cityguard",
		Subsystem: "pipeline",
		Name:      "cycles_skipped_total",
		Help:      "Total number of scheduled cycles skipped because the previous cycle was still running.",
	})

	// CycleDurationSeconds is end-to-end fetch cycle time.
	CycleDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cityguard",
		Subsystem: "pipeline",
		Name:      "cycle_duration_seconds",
		Help:      "End-to-end time for one fetch/analyze/notify cycle.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 60, 120, 300},
	})

	// IncidentsFetched counts normalized incidents produced per source.
	IncidentsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityguard",
		Subsystem: "pipeline",
		Name:      "incidents_fetched_total",
		Help:      "Total number of normalized incidents extracted, labeled by source.",
	}, []string{"source"})

	// IncidentsPersisted counts incidents that passed the store gate and were saved.
	IncidentsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cityguard",
		Subsystem: "pipeline",
		Name:      "incidents_persisted_total",
		Help:      "Total number of incidents persisted after analysis.",
	})

	// IncidentsDropped counts incidents dropped by the relevance/credibility gate.
	IncidentsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cityguard",
		Subsystem: "pipeline",
		Name:      "incidents_dropped_total",
		Help:      "Total number of incidents dropped by the persistence gate.",
	})

	// NotificationsTotal counts email dispatch attempts by status.
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityguard",
		Subsystem: "notifier",
		Name:      "notifications_total",
		Help:      "Total number of notification attempts, labeled by status.",
	}, []string{"status"})

	// LLMFallbacks counts analyses that fell back to the default verdict.
	LLMFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cityguard",
		Subsystem: "analyzer",
		Name:      "llm_fallbacks_total",
		Help:      "Total number of incident analyses that used the fallback verdict.",
	})
)

// Register registers pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			CyclesTotal,
			CyclesSkipped,
			CycleDurationSeconds,
			IncidentsFetched,
			IncidentsPersisted,
			IncidentsDropped,
			NotificationsTotal,
			LLMFallbacks,
		)
	})
}
