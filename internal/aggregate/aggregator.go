// Package aggregate maintains capacity-bounded, continuously updated
// collections of log records under three merge policies: plain (chronological
// audit trail), collapse (tail-only run suppression) and smart (global
// merge-by-similarity with most-recently-active ordering).
package aggregate

import (
	"sync"

	"github.com/quillside/logdeck/internal/filter"
	"github.com/quillside/logdeck/internal/model"
)

// DefaultCapacity bounds an aggregator when no explicit capacity is
// configured. The cap is deliberately conservative; raise it through
// configuration for hosts that want deeper history.
const DefaultCapacity = 1000

// Aggregator is the contract shared by every strategy.
//
// Counter semantics: the per-severity counters track the number of events
// currently represented, so a stored record contributes RepeatCount to its
// severity. For Plain every RepeatCount is 1 and the counters sum to Len().
type Aggregator interface {
	// Ingest admits one record unless the shared filter silences its
	// source. The aggregator takes ownership of the record.
	Ingest(rec *model.LogRecord)

	// FlushBufferedLogs reports whether the contents changed since the
	// previous call, clearing the flag. Presentation layers poll this to
	// skip redundant re-reads.
	FlushBufferedLogs() bool

	// GetLogRecords returns copies of all stored records, most recent
	// first.
	GetLogRecords() []model.LogRecord

	// ClearAllLogs empties the collection and zeroes the counters.
	ClearAllLogs()

	// UpdateFilter re-evaluates stored records against the shared filter,
	// evicting any whose source is now silenced. Callers extend the filter
	// first and invoke this on every live aggregator; there is no push
	// notification.
	UpdateFilter()

	// StartCapture and StopCapture are lifecycle hooks around attachment
	// to the interceptor.
	StartCapture()
	StopCapture()

	// Len returns the number of stored records.
	Len() int

	// Counts returns the per-severity event counters.
	Counts() map[model.Severity]int
}

// strategy is the merge policy plugged into base. Implementations only
// shape the list; admission, counters, capacity and dirty tracking live in
// base.
type strategy interface {
	// aggregate stores or merges one admitted record.
	aggregate(b *base, rec *model.LogRecord)
	// onEvict is called for every record leaving the collection, whether
	// by capacity, filter update or clear.
	onEvict(rec *model.LogRecord)
	// onClear is called once when the collection is emptied wholesale.
	onClear()
}

// base carries the state and shared contract behind every strategy. All
// mutation is guarded by one mutex per aggregator; the linked-list move and
// evict operations are not safe under concurrent mutation.
type base struct {
	mu       sync.Mutex
	list     recordList
	capacity int
	counts   [model.SeverityCount]int
	dirty    bool
	filter   *filter.Filter
	strat    strategy
}

func newBase(capacity int, f *filter.Filter, s strategy) base {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return base{capacity: capacity, filter: f, strat: s}
}

func (b *base) Ingest(rec *model.LogRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.filter != nil && b.filter.Matches(rec.Source) {
		return
	}
	b.strat.aggregate(b, rec)
	b.counts[rec.Severity]++
	b.enforceCapacity()
	b.dirty = true
}

// append pushes a brand-new record at the tail and returns its node.
func (b *base) append(rec *model.LogRecord) *node {
	n := &node{rec: rec}
	b.list.pushTail(n)
	return n
}

func (b *base) enforceCapacity() {
	for b.list.size > b.capacity {
		n := b.list.popHead()
		if n == nil {
			return
		}
		b.counts[n.rec.Severity] -= n.rec.RepeatCount
		b.strat.onEvict(n.rec)
	}
}

func (b *base) FlushBufferedLogs() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.dirty
	b.dirty = false
	return d
}

func (b *base) GetLogRecords() []model.LogRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.LogRecord, 0, b.list.size)
	for n := b.list.tail; n != nil; n = n.prev {
		out = append(out, *n.rec)
	}
	return out
}

func (b *base) ClearAllLogs() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.list.clear()
	b.counts = [model.SeverityCount]int{}
	b.strat.onClear()
	b.dirty = true
}

func (b *base) UpdateFilter() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.filter == nil {
		return
	}
	removed := false
	for n := b.list.head; n != nil; {
		next := n.next
		if b.filter.Matches(n.rec.Source) {
			b.list.remove(n)
			b.counts[n.rec.Severity] -= n.rec.RepeatCount
			b.strat.onEvict(n.rec)
			removed = true
		}
		n = next
	}
	if removed {
		b.dirty = true
	}
}

func (b *base) StartCapture() {}
func (b *base) StopCapture()  {}

func (b *base) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.list.size
}

func (b *base) Counts() map[model.Severity]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[model.Severity]int, model.SeverityCount)
	for s := model.Severity(0); s < model.SeverityCount; s++ {
		out[s] = b.counts[s]
	}
	return out
}
