package aggregate

import (
	"github.com/quillside/logdeck/internal/filter"
	"github.com/quillside/logdeck/internal/model"
)

// SmartAggregator merges an incoming record into a matching stored record
// anywhere in the collection and promotes the merged entry to most recent.
// A console reading only the tail is never swamped by one noisy source, at
// the cost of losing the merged entry's original chronological position.
//
// A hash index from similarity hash to list node gives O(1) merge+move and
// O(1) evict.
type SmartAggregator struct {
	base
}

// NewSmart creates a smart aggregator.
func NewSmart(capacity int, f *filter.Filter) *SmartAggregator {
	a := &SmartAggregator{}
	a.base = newBase(capacity, f, &smartStrategy{index: make(map[uint64]*node)})
	return a
}

type smartStrategy struct {
	index map[uint64]*node
}

func (s *smartStrategy) aggregate(b *base, rec *model.LogRecord) {
	h := rec.SimilarityHash()
	if n, ok := s.index[h]; ok {
		n.rec.Merge(rec)
		b.list.moveToTail(n)
		return
	}
	s.index[h] = b.append(rec)
}

func (s *smartStrategy) onEvict(rec *model.LogRecord) {
	delete(s.index, rec.SimilarityHash())
}

func (s *smartStrategy) onClear() {
	s.index = make(map[uint64]*node)
}
