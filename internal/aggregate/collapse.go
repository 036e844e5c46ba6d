package aggregate

import (
	"github.com/quillside/logdeck/internal/filter"
	"github.com/quillside/logdeck/internal/model"
)

// CollapseAggregator merges an incoming record into the record currently at
// the tail when their similarity hashes match. Tight logging loops collapse
// into one entry while ordering between distinct messages is preserved: an
// intervening different message breaks the run.
type CollapseAggregator struct {
	base
}

// NewCollapse creates a collapse aggregator.
func NewCollapse(capacity int, f *filter.Filter) *CollapseAggregator {
	a := &CollapseAggregator{}
	a.base = newBase(capacity, f, collapseStrategy{})
	return a
}

type collapseStrategy struct{}

func (collapseStrategy) aggregate(b *base, rec *model.LogRecord) {
	if tail := b.list.tail; tail != nil && tail.rec.SimilarityHash() == rec.SimilarityHash() {
		tail.rec.Merge(rec)
		return
	}
	b.append(rec)
}

func (collapseStrategy) onEvict(*model.LogRecord) {}
func (collapseStrategy) onClear()                 {}
