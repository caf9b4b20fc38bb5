package api

import "sync/atomic"

// Metrics is a set of in-memory counters surfaced at GET /v1/jobs/metrics,
// adapted from the teacher's metrics.go (persisted counters backed by a
// `metrics` table) into plain process-lifetime atomics: the gateway is a
// single embedded-store process, so there is no multi-instance aggregation
// concern a persisted counter would solve.
type Metrics struct {
	jobsEnqueued atomic.Int64
	jobsLeased   atomic.Int64
	jobsCompleted atomic.Int64
	jobsFailed   atomic.Int64
	jobsRetried  atomic.Int64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordEnqueued()  { m.jobsEnqueued.Add(1) }
func (m *Metrics) recordLeased()    { m.jobsLeased.Add(1) }
func (m *Metrics) recordCompleted() { m.jobsCompleted.Add(1) }
func (m *Metrics) recordFailed()    { m.jobsFailed.Add(1) }
func (m *Metrics) recordRetried()   { m.jobsRetried.Add(1) }

// Snapshot is the JSON-serializable view of the counters.
type Snapshot struct {
	JobsEnqueued  int64 `json:"jobsEnqueued"`
	JobsLeased    int64 `json:"jobsLeased"`
	JobsCompleted int64 `json:"jobsCompleted"`
	JobsFailed    int64 `json:"jobsFailed"`
	JobsRetried   int64 `json:"jobsRetried"`
}

func (m *Metrics) snapshot() Snapshot {
	return Snapshot{
		JobsEnqueued:  m.jobsEnqueued.Load(),
		JobsLeased:    m.jobsLeased.Load(),
		JobsCompleted: m.jobsCompleted.Load(),
		JobsFailed:    m.jobsFailed.Load(),
		JobsRetried:   m.jobsRetried.Load(),
	}
}
