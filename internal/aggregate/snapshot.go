package aggregate

import (
	"github.com/quillside/logdeck/internal/model"
)

// SnapshotAggregator holds a frozen deep copy of another aggregator's
// contents, taken on demand. While paused, the presentation layer reads the
// snapshot and the live aggregator keeps accumulating underneath. It never
// attaches to the interceptor, so the capture hooks stay no-ops.
type SnapshotAggregator struct {
	base
}

// NewSnapshot creates an empty snapshot aggregator.
func NewSnapshot() *SnapshotAggregator {
	a := &SnapshotAggregator{}
	// No filter and no merging: the snapshot must mirror the source
	// exactly as of the load, not re-aggregate it.
	a.base = newBase(0, nil, plainStrategy{})
	return a
}

// LoadLogs replaces the snapshot's contents with copies of src's records.
// The dirty flag is raised once for the whole load.
func (a *SnapshotAggregator) LoadLogs(src Aggregator) {
	recs := src.GetLogRecords() // most recent first

	a.mu.Lock()
	defer a.mu.Unlock()

	a.list.clear()
	a.counts = [model.SeverityCount]int{}
	if len(recs) > a.capacity {
		a.capacity = len(recs)
	}
	// Append oldest first so the snapshot's internal order matches the
	// source and GetLogRecords reads back identically.
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i].Clone()
		a.append(rec)
		a.counts[rec.Severity] += rec.RepeatCount
	}
	a.dirty = true
}
