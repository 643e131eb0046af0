// Package metrics wires ReedBase's Prometheus collectors, following the
// package-level var-block-plus-init-registration idiom from the
// cuemby-warren lineage of the example pack (pkg/metrics/metrics.go there).
// ReedBase additionally keeps plain atomic counters alongside the
// Prometheus collectors so Database.CollectMetrics() can return an
// in-process snapshot without needing a Prometheus scrape.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CommitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reedbase_commit_duration_seconds",
		Help:    "Time taken to commit a table write, including merge.",
		Buckets: prometheus.DefBuckets,
	})

	MergeConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedbase_merge_conflicts_total",
		Help: "Total number of write-session commits that detected a conflict.",
	})

	WritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reedbase_writes_total",
		Help: "Total number of table writes by outcome.",
	}, []string{"outcome"})

	RecoveryEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reedbase_recovery_events_total",
		Help: "Total number of recovery actions taken at Database.Open, by kind.",
	}, []string{"kind"})

	IndexRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedbase_index_rebuilds_total",
		Help: "Total number of full index rebuilds performed.",
	})
)

func init() {
	prometheus.MustRegister(CommitLatency, MergeConflicts, WritesTotal, RecoveryEvents, IndexRebuilds)
}

// Timer mirrors the teacher pack's timing helper (cuemby-warren
// pkg/metrics.Timer): start it, then report elapsed duration to a
// histogram at the end of an operation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer { return &Timer{start: time.Now()} }

func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Duration() time.Duration { return time.Since(t.start) }

// Snapshot is an in-process counter snapshot returned by
// Database.CollectMetrics, independent of whether anything is actually
// scraping the Prometheus endpoint.
type Snapshot struct {
	WritesSucceeded  int64
	WritesConflicted int64
	WritesErrored    int64
	MergeConflicts   int64
	RecoveryEvents   int64
	IndexRebuilds    int64
}

var (
	writesSucceeded  int64
	writesConflicted int64
	writesErrored    int64
	mergeConflicts   int64
	recoveryEvents   int64
	indexRebuilds    int64
)

// RecordWrite updates both the Prometheus counter and the in-process
// snapshot counter for one commit outcome.
func RecordWrite(outcome string) {
	WritesTotal.WithLabelValues(outcome).Inc()
	switch outcome {
	case "success":
		atomic.AddInt64(&writesSucceeded, 1)
	case "conflict":
		atomic.AddInt64(&writesConflicted, 1)
	default:
		atomic.AddInt64(&writesErrored, 1)
	}
}

func RecordMergeConflict() {
	MergeConflicts.Inc()
	atomic.AddInt64(&mergeConflicts, 1)
}

func RecordRecoveryEvent(kind string) {
	RecoveryEvents.WithLabelValues(kind).Inc()
	atomic.AddInt64(&recoveryEvents, 1)
}

func RecordIndexRebuild() {
	IndexRebuilds.Inc()
	atomic.AddInt64(&indexRebuilds, 1)
}

// Collect returns the current in-process snapshot.
func Collect() Snapshot {
	return Snapshot{
		WritesSucceeded:  atomic.LoadInt64(&writesSucceeded),
		WritesConflicted: atomic.LoadInt64(&writesConflicted),
		WritesErrored:    atomic.LoadInt64(&writesErrored),
		MergeConflicts:   atomic.LoadInt64(&mergeConflicts),
		RecoveryEvents:   atomic.LoadInt64(&recoveryEvents),
		IndexRebuilds:    atomic.LoadInt64(&indexRebuilds),
	}
}
