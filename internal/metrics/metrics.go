package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks schema resolution, validation and conversion activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SchemaLoads        *prometheus.CounterVec
	SchemaCacheHits    prometheus.Counter
	SchemaLoadDuration prometheus.Histogram
	Violations         prometheus.Counter
	Conversions        *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec
}

// New registers all metrics on reg. Tests pass a fresh prometheus.Registry;
// nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		SchemaLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tagtree_schema_loads_total",
			Help: "Underlying schema loads by source and outcome",
		}, []string{"source", "outcome"}),
		SchemaCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "tagtree_schema_cache_hits_total",
			Help: "Schema resolutions served from the cache",
		}),
		SchemaLoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tagtree_schema_load_duration_seconds",
			Help:    "Duration of underlying schema loads",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		Violations: f.NewCounter(prometheus.CounterOpts{
			Name: "tagtree_schema_violations_total",
			Help: "Schema violations reported by the validation gate",
		}),
		Conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tagtree_conversions_total",
			Help: "Tagged node conversions by direction and outcome",
		}, []string{"direction", "outcome"}),
		ConversionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tagtree_conversion_duration_seconds",
			Help:    "Duration of tagged node conversions including validation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"direction"}),
	}
}

// ObserveSchemaLoad records one underlying load.
// Call with time.Now() at the start of the load.
func (m *Metrics) ObserveSchemaLoad(source string, err error, start time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SchemaLoads.WithLabelValues(source, outcome).Inc()
	m.SchemaLoadDuration.Observe(time.Since(start).Seconds())
}

// IncSchemaCacheHit records a cached resolution.
func (m *Metrics) IncSchemaCacheHit() {
	if m == nil {
		return
	}
	m.SchemaCacheHits.Inc()
}

// AddViolations records n violations.
func (m *Metrics) AddViolations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Violations.Add(float64(n))
}

// ObserveConversion records one tagged node conversion.
// Call with time.Now() at the start of the conversion.
func (m *Metrics) ObserveConversion(direction string, err error, start time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Conversions.WithLabelValues(direction, outcome).Inc()
	m.ConversionDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
}
