// Package filter holds the shared silence rule set applied before any
// aggregator stores a record.
package filter

import (
	"sort"
	"strings"
	"sync"
)

// Filter is an append-only set of silence rules. A single instance is shared
// by reference across every aggregator; after extending it, the owner must
// call UpdateFilter on each aggregator to evict already-stored records.
//
// The prefix check is a linear scan, acceptable only while the prefix list
// stays small (hand-curated silence rules, not programmatic churn).
type Filter struct {
	mu       sync.RWMutex
	exact    map[string]struct{}
	prefixes []string
}

// New returns an empty filter.
func New() *Filter {
	return &Filter{exact: make(map[string]struct{})}
}

// AddSilenceBySource silences an exact source. Idempotent; reports whether
// the rule was new.
func (f *Filter) AddSilenceBySource(source string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.exact[source]; ok {
		return false
	}
	f.exact[source] = struct{}{}
	return true
}

// AddSilenceByPrefix silences every source starting with prefix. Idempotent;
// reports whether the rule was new.
func (f *Filter) AddSilenceByPrefix(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.prefixes {
		if p == prefix {
			return false
		}
	}
	f.prefixes = append(f.prefixes, prefix)
	return true
}

// Matches reports whether source is silenced by an exact or prefix rule.
func (f *Filter) Matches(source string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, ok := f.exact[source]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(source, p) {
			return true
		}
	}
	return false
}

// Reset drops every rule.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact = make(map[string]struct{})
	f.prefixes = nil
}

// Snapshot returns the current rules, exact sources sorted for stable
// persistence, prefixes in insertion order.
func (f *Filter) Snapshot() (exact, prefixes []string) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	exact = make([]string, 0, len(f.exact))
	for s := range f.exact {
		exact = append(exact, s)
	}
	sort.Strings(exact)
	prefixes = append(prefixes, f.prefixes...)
	return exact, prefixes
}

// Load replaces the rule set with persisted rules.
func (f *Filter) Load(exact, prefixes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.exact = make(map[string]struct{}, len(exact))
	for _, s := range exact {
		f.exact[s] = struct{}{}
	}
	f.prefixes = nil
	for _, p := range prefixes {
		dup := false
		for _, have := range f.prefixes {
			if have == p {
				dup = true
				break
			}
		}
		if !dup {
			f.prefixes = append(f.prefixes, p)
		}
	}
}
