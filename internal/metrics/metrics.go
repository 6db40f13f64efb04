// Package metrics exposes sync instrumentation to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studiokicks/leaderboard/internal/model"
)

const namespace = "leaderboard"

// Config controls the metrics listener
type Config struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Addr:    ":9090",
		Path:    "/metrics",
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if c.Path == "" || c.Path[0] != '/' {
		return errors.New("metrics.path must start with /")
	}
	return nil
}

// Recorder holds the sync instruments. A nil *Recorder records nothing.
type Recorder struct {
	runDuration     *prometheus.HistogramVec
	recordsFetched  *prometheus.CounterVec
	rowsPersisted   *prometheus.CounterVec
	recordsDropped  *prometheus.CounterVec
	rowsFailed      *prometheus.CounterVec
	entityFailures  *prometheus.CounterVec
	watermark       *prometheus.GaugeVec
	droppedRequests *prometheus.CounterVec
}

// NewRecorder creates the instruments and registers them with reg.
// If reg is nil, it returns nil (no-op metrics).
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		return nil, nil
	}

	r := &Recorder{
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
		recordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Records returned by the studio API",
		}, []string{"entity"}),
		rowsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_persisted_total",
			Help:      "Rows upserted into the local database",
		}, []string{"entity"}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records rejected by the mapper",
		}, []string{"entity"}),
		rowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_failed_total",
			Help:      "Rows the database refused",
		}, []string{"entity"}),
		entityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_sync_failures_total",
			Help:      "Entity synchronizations that ended in failure",
		}, []string{"entity"}),
		watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_seconds",
			Help:      "Current watermark per entity type as epoch seconds",
		}, []string{"entity"}),
		droppedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_requests_dropped_total",
			Help:      "Sync requests refused because of backpressure",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{
		r.runDuration, r.recordsFetched, r.rowsPersisted, r.recordsDropped,
		r.rowsFailed, r.entityFailures, r.watermark, r.droppedRequests,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// NewRegistry returns a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the contents of reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RecordRun records the duration of a whole sync run
func (r *Recorder) RecordRun(duration time.Duration, failed bool) {
	if r == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "degraded"
	}
	r.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordBatch records the outcome of one entity batch
func (r *Recorder) RecordBatch(entity model.EntityType, fetched, persisted, dropped, failed int) {
	if r == nil {
		return
	}
	e := entity.String()
	r.recordsFetched.WithLabelValues(e).Add(float64(fetched))
	r.rowsPersisted.WithLabelValues(e).Add(float64(persisted))
	r.recordsDropped.WithLabelValues(e).Add(float64(dropped))
	r.rowsFailed.WithLabelValues(e).Add(float64(failed))
}

// RecordEntityFailure counts a synchronizer that ended in failure
func (r *Recorder) RecordEntityFailure(entity model.EntityType) {
	if r == nil {
		return
	}
	r.entityFailures.WithLabelValues(entity.String()).Inc()
}

// SetWatermark publishes the current watermark of entity
func (r *Recorder) SetWatermark(entity model.EntityType, ts int64) {
	if r == nil {
		return
	}
	r.watermark.WithLabelValues(entity.String()).Set(float64(ts))
}

// RecordDroppedRequest counts a sync request refused with reason
func (r *Recorder) RecordDroppedRequest(reason string) {
	if r == nil {
		return
	}
	r.droppedRequests.WithLabelValues(reason).Inc()
}
