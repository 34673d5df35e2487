// Package metrics exposes ingestion cycle counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quote_ingestor"

// Metrics holds the collectors of one process. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal        prometheus.Counter
	CycleDuration      prometheus.Histogram
	FetchFailures      *prometheus.CounterVec
	NormalizeFailures  *prometheus.CounterVec
	StoreFailures      prometheus.Counter
	RecordsStored      prometheus.Counter
	StoredRecords      prometheus.Gauge
	LastCycleTimestamp prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Ingestion cycles run",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Ingestion cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Symbols whose provider fetch failed",
		}, []string{"source"}),
		NormalizeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_failures_total",
			Help:      "Quotes rejected by the normalizer",
		}, []string{"source"}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Records the store failed to upsert",
		}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Records upserted successfully",
		}),
		StoredRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_records",
			Help:      "Records in the store after the last cycle",
		}),
		LastCycleTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CyclesTotal,
		m.CycleDuration,
		m.FetchFailures,
		m.NormalizeFailures,
		m.StoreFailures,
		m.RecordsStored,
		m.StoredRecords,
		m.LastCycleTimestamp,
	)
	return m
}

func (m *Metrics) ObserveFetchFailure(source string) {
	m.FetchFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveNormalizeFailure(source string) {
	m.NormalizeFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveStore(stored, failed int) {
	m.RecordsStored.Add(float64(stored))
	m.StoreFailures.Add(float64(failed))
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(totalRecords int64, duration time.Duration, finishedAt time.Time) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(duration.Seconds())
	m.StoredRecords.Set(float64(totalRecords))
	m.LastCycleTimestamp.Set(float64(finishedAt.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
