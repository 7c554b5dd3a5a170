package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts coordinator activity. A nil *Metrics records nothing.
type Metrics struct {
	events          *prometheus.CounterVec
	rebuilds        *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	cancelledTimers prometheus.Counter
	staleTimers     prometheus.Counter
}

// NewMetrics registers the coordinator metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_events_total",
			Help: "Events applied to the state store by kind",
		}, []string{"kind"}),
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_rebuilds_total",
			Help: "Engine rebuilds by outcome",
		}, []string{"outcome"}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashboard_rebuild_duration_seconds",
			Help:    "Engine rebuild duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}),
		cancelledTimers: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_debounce_cancelled_total",
			Help: "Debounce timers replaced before they fired",
		}),
		staleTimers: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_debounce_stale_total",
			Help: "Debounce fires ignored because a newer timer superseded them",
		}),
	}
}

func (m *Metrics) event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) rebuild(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(outcome).Inc()
	m.rebuildDuration.Observe(d.Seconds())
}

func (m *Metrics) cancelled() {
	if m == nil {
		return
	}
	m.cancelledTimers.Inc()
}

func (m *Metrics) stale() {
	if m == nil {
		return
	}
	m.staleTimers.Inc()
}
