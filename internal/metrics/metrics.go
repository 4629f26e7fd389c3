// Package metrics records batch-run metrics in a private registry and pushes
// them to a Prometheus Pushgateway at the end of a run.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "s3_permanent_deletes"

// Batch holds the collectors for one command run. A nil *Batch records nothing.
type Batch struct {
	registry *prometheus.Registry
	job      string

	groupsTotal     *prometheus.CounterVec
	matchedObjects  prometheus.Gauge
	tagOutcomes     *prometheus.CounterVec
	phaseDuration   *prometheus.GaugeVec
	pendingObjects  prometheus.Gauge
	pendingBytes    prometheus.Gauge
	recentDeletions prometheus.Gauge
	cleanupRows     *prometheus.CounterVec
	lastCompletion  prometheus.Gauge
}

// NewBatch registers the batch collectors under job.
func NewBatch(job string) *Batch {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Batch{
		registry: reg,
		job:      job,

		groupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_groups_total",
			Help:      "Location groups processed by discovery, by status",
		}, []string{"status"}),

		matchedObjects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matched_objects",
			Help:      "Distinct object keys matched by discovery",
		}),

		tagOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_outcomes_total",
			Help:      "Tagging attempts by outcome reason",
		}, []string{"reason"}),

		phaseDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each run phase",
		}, []string{"phase"}),

		pendingObjects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_objects",
			Help:      "Objects carrying the deletion tag",
		}),

		pendingBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_bytes",
			Help:      "Total size of objects carrying the deletion tag",
		}),

		recentDeletions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recent_deletions",
			Help:      "DeleteObject events seen in the lookback window",
		}),

		cleanupRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_rows_total",
			Help:      "Relational rows handled by cleanup, by operation and result",
		}, []string{"operation", "result"}),

		lastCompletion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_completion_timestamp_seconds",
			Help:      "Unix time the run completed",
		}),
	}
}

// Registry exposes the underlying registry (tests, ad hoc gathering).
func (b *Batch) Registry() *prometheus.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

func (b *Batch) ObserveGroup(failed bool) {
	if b == nil {
		return
	}
	status := "ok"
	if failed {
		status = "failed"
	}
	b.groupsTotal.WithLabelValues(status).Inc()
}

func (b *Batch) SetMatched(n int) {
	if b == nil {
		return
	}
	b.matchedObjects.Set(float64(n))
}

func (b *Batch) ObserveOutcome(reason string) {
	if b == nil {
		return
	}
	b.tagOutcomes.WithLabelValues(reason).Inc()
}

func (b *Batch) ObservePhase(phase string, d time.Duration) {
	if b == nil {
		return
	}
	b.phaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

func (b *Batch) SetPending(objects int, bytes int64) {
	if b == nil {
		return
	}
	b.pendingObjects.Set(float64(objects))
	b.pendingBytes.Set(float64(bytes))
}

func (b *Batch) SetRecentDeletions(n int) {
	if b == nil {
		return
	}
	b.recentDeletions.Set(float64(n))
}

func (b *Batch) AddCleanupRows(operation, result string, n int) {
	if b == nil || n <= 0 {
		return
	}
	b.cleanupRows.WithLabelValues(operation, result).Add(float64(n))
}

// Push stamps the completion time and pushes every collector to url.
// An empty url is a no-op.
func (b *Batch) Push(ctx context.Context, url string) error {
	if b == nil || url == "" {
		return nil
	}
	b.lastCompletion.SetToCurrentTime()

	if err := push.New(url, b.job).Gatherer(b.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
