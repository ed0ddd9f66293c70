// Package metrics exposes Prometheus instrumentation for the analysis
// server: per-stage recompute duration and stage-cache hit/miss counts,
// served over a dedicated /metrics endpoint. Query-outcome counters are
// registered as well, but nothing in this repository increments them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aptgraph/aptgraph/internal/pipeline"
)

// Registry bundles the server's metrics. Start feeds the three stage
// metrics; QueriesTotal and QueryErrors are registered but not
// incremented by any code in this repository.
// A fresh Registry is safe to build more than once (for tests); each
// call registers against its own prometheus.Registry, so concurrent
// test instances never collide on global metric names.
type Registry struct {
	registry *prometheus.Registry

	StageDuration   *prometheus.HistogramVec
	StageRecomputed *prometheus.CounterVec
	StageCacheHit   *prometheus.CounterVec
	QueriesTotal    *prometheus.CounterVec
	QueryErrors     *prometheus.CounterVec
}

// New builds a Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aptgraph",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock time spent (re)computing one pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		StageRecomputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aptgraph",
			Subsystem: "pipeline",
			Name:      "stage_recomputed_total",
			Help:      "Number of times a stage was recomputed (cache miss).",
		}, []string{"stage"}),
		StageCacheHit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aptgraph",
			Subsystem: "pipeline",
			Name:      "stage_cache_hit_total",
			Help:      "Number of times a stage was served from the stage cache.",
		}, []string{"stage"}),
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aptgraph",
			Subsystem: "query",
			Name:      "total",
			Help:      "Completed analyze queries, labeled by study/UI mode.",
		}, []string{"mode"}),
		QueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aptgraph",
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Failed analyze queries, labeled by error class.",
		}, []string{"class"}),
	}
}

// Handler returns the HTTP handler serving this Registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// StageNames indexes the eight pipeline stages by position for the
// "stage" label, matching pipeline.Event.Stage.
var StageNames = [8]string{
	"resolve_users",
	"fusion",
	"similarity_stats",
	"prune_cluster",
	"cluster_stats",
	"size_filter",
	"whitelist",
	"rank",
}

// StageLabel returns the metric label for a 0-based pipeline stage
// index, or "unknown" if out of range.
func StageLabel(stage int) string {
	if stage < 0 || stage >= len(StageNames) {
		return "unknown"
	}
	return StageNames[stage]
}

// Start implements pipeline.StageHook: it records the stage's
// wall-clock duration in StageDuration and bumps StageRecomputed or
// StageCacheHit depending on cached.
func (r *Registry) Start(ctx context.Context, stage int, cached bool) (context.Context, func()) {
	label := StageLabel(stage)
	if cached {
		r.StageCacheHit.WithLabelValues(label).Inc()
		return ctx, func() {}
	}
	r.StageRecomputed.WithLabelValues(label).Inc()
	start := time.Now()
	return ctx, func() {
		r.StageDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
}

var _ pipeline.StageHook = (*Registry)(nil)
