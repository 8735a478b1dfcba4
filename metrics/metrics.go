package metrics

import "sync/atomic"

// Metrics captures shared operational stats for the worker queue, the query
// surface, and the import/export pipelines.
type Metrics struct {
	queueLength   int64
	queueCapacity int64
	workerCount   int64

	processedJobs int64
	failedJobs    int64

	queriesServed int64
	queriesFailed int64
	exportsBuilt  int64
	rowsImported  int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	WorkerCount   int   `json:"worker_count"`
	ProcessedJobs int64 `json:"processed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	QueriesServed int64 `json:"queries_served"`
	QueriesFailed int64 `json:"queries_failed"`
	ExportsBuilt  int64 `json:"exports_built"`
	RowsImported  int64 `json:"rows_imported"`
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
	atomic.StoreInt64(&m.workerCount, int64(workers))
}

// RecordJobCompletion increments processed/failed counters based on outcome.
func (m *Metrics) RecordJobCompletion(err error) {
	atomic.AddInt64(&m.processedJobs, 1)
	if err != nil {
		atomic.AddInt64(&m.failedJobs, 1)
	}
}

// RecordQuery counts one call-log or analytics query by outcome.
func (m *Metrics) RecordQuery(err error) {
	if err != nil {
		atomic.AddInt64(&m.queriesFailed, 1)
		return
	}
	atomic.AddInt64(&m.queriesServed, 1)
}

// RecordExport counts one completed CSV export.
func (m *Metrics) RecordExport() {
	atomic.AddInt64(&m.exportsBuilt, 1)
}

// RecordImportedRows adds contacts accepted by an import job.
func (m *Metrics) RecordImportedRows(n int) {
	atomic.AddInt64(&m.rowsImported, int64(n))
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		QueueLength:   int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity: int(atomic.LoadInt64(&m.queueCapacity)),
		WorkerCount:   int(atomic.LoadInt64(&m.workerCount)),
		ProcessedJobs: atomic.LoadInt64(&m.processedJobs),
		FailedJobs:    atomic.LoadInt64(&m.failedJobs),
		QueriesServed: atomic.LoadInt64(&m.queriesServed),
		QueriesFailed: atomic.LoadInt64(&m.queriesFailed),
		ExportsBuilt:  atomic.LoadInt64(&m.exportsBuilt),
		RowsImported:  atomic.LoadInt64(&m.rowsImported),
	}
}
