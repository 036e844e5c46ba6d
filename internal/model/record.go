package model

import (
	"hash/fnv"
	"io"
	"time"
)

// RawEvent is one diagnostic event as pushed by the host. StackTrace is
// authoritative for SeverityException and advisory (usually empty) for
// everything else.
type RawEvent struct {
	Message    string
	StackTrace string
	Severity   Severity
}

// LogRecord wraps one admitted event plus merge bookkeeping. ID, Message,
// Source and Severity never change after construction; RepeatCount and
// Timestamp are updated when later occurrences merge into this record.
type LogRecord struct {
	ID          uint64
	Timestamp   time.Time
	Message     string
	StackTrace  string
	Source      string
	Severity    Severity
	RepeatCount int

	hash    uint64
	hashSet bool
}

// NewLogRecord builds a record for a freshly admitted event.
func NewLogRecord(id uint64, ts time.Time, evt RawEvent, source, trace string) *LogRecord {
	return &LogRecord{
		ID:          id,
		Timestamp:   ts,
		Message:     evt.Message,
		StackTrace:  trace,
		Source:      source,
		Severity:    evt.Severity,
		RepeatCount: 1,
	}
}

// SimilarityHash returns the memoized digest of (source, severity, message).
// Stack traces and timestamps never feed the hash, so two occurrences of the
// same condition always collide regardless of where they were raised from.
func (r *LogRecord) SimilarityHash() uint64 {
	if !r.hashSet {
		h := fnv.New64a()
		io.WriteString(h, r.Source)
		h.Write([]byte{byte(r.Severity)})
		io.WriteString(h, r.Message)
		r.hash = h.Sum64()
		r.hashSet = true
	}
	return r.hash
}

// Merge folds a later occurrence into this record. Only RepeatCount and
// Timestamp change; identity fields stay untouched.
func (r *LogRecord) Merge(other *LogRecord) {
	r.RepeatCount += other.RepeatCount
	if other.Timestamp.After(r.Timestamp) {
		r.Timestamp = other.Timestamp
	}
}

// Clone returns a field-for-field copy. Aggregators each own their copy so
// one strategy's merges never leak into another's stored records.
func (r *LogRecord) Clone() *LogRecord {
	c := *r
	return &c
}
