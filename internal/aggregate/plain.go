package aggregate

import (
	"github.com/quillside/logdeck/internal/filter"
	"github.com/quillside/logdeck/internal/model"
)

// PlainAggregator stores every admitted record in arrival order and never
// merges: an unfiltered chronological audit trail.
type PlainAggregator struct {
	base
}

// NewPlain creates a plain aggregator. capacity <= 0 selects
// DefaultCapacity; f may be nil for an unfiltered collection.
func NewPlain(capacity int, f *filter.Filter) *PlainAggregator {
	a := &PlainAggregator{}
	a.base = newBase(capacity, f, plainStrategy{})
	return a
}

type plainStrategy struct{}

func (plainStrategy) aggregate(b *base, rec *model.LogRecord) {
	b.append(rec)
}

func (plainStrategy) onEvict(*model.LogRecord) {}
func (plainStrategy) onClear()                 {}
