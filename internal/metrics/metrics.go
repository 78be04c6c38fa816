// Package metrics exposes Prometheus instruments for the monitor, the feed
// and the fanout, and serves them over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alertbot"

// Metrics holds every instrument on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	cycles       *prometheus.CounterVec
	fetchSeconds prometheus.Histogram
	transitions  *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	regionStatus *prometheus.GaugeVec
	subscribers  *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_cycles_total",
			Help:      "Monitor cycles by result (baseline, ok, fetch_error, panic).",
		}, []string{"result"}),
		fetchSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_seconds",
			Help:      "Latency of alert feed requests.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms .. ~12.8s
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_transitions_total",
			Help:      "Observed per-region status changes.",
		}, []string{"from", "to"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by message class and result.",
		}, []string{"class", "result"}),
		regionStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_status",
			Help:      "Last observed status per region (0 unknown, 1 none, 2 active, 3 partial).",
		}, []string{"region"}),
		subscribers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Registry size by kind (total, enabled, with_region).",
		}, []string{"kind"}),
	}
}

// Registry is the gatherer served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveCycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchSeconds.Observe(d.Seconds())
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveDelivery(class string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(class, result).Inc()
}

func (m *Metrics) SetRegionStatus(region string, status int) {
	if m == nil {
		return
	}
	m.regionStatus.WithLabelValues(region).Set(float64(status))
}

func (m *Metrics) SetSubscribers(total, enabled, withRegion int) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues("total").Set(float64(total))
	m.subscribers.WithLabelValues("enabled").Set(float64(enabled))
	m.subscribers.WithLabelValues("with_region").Set(float64(withRegion))
}
