// Package intercept installs the console as the host's log sink, resolves a
// source for every event and fans records out to preview callbacks and to
// every attached aggregator.
package intercept

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/quillside/logdeck/internal/aggregate"
	"github.com/quillside/logdeck/internal/model"
	"github.com/quillside/logdeck/internal/resolve"
)

// PreviewFunc receives every record before aggregation, pre-filter. The
// record is shared; callbacks must treat it as read-only and must not log
// (re-entrancy is undefined) or block.
type PreviewFunc func(rec *model.LogRecord)

// previewSource is attributed to synthesized warnings about misbehaving
// preview callbacks.
const previewSource = "Interceptor.Preview"

// Interceptor assigns monotonically increasing IDs, builds records via the
// resolver and distributes them. It does not filter or aggregate itself;
// admission is each aggregator's job.
type Interceptor struct {
	mu        sync.Mutex
	enabled   bool
	started   bool
	nextID    uint64
	nextToken uint64
	previews  map[uint64]PreviewFunc
	aggs      []aggregate.Aggregator
	resolver  *resolve.Resolver
	diag      *slog.Logger
	prev      *slog.Logger
	now       func() time.Time
}

// New creates an interceptor. A disabled interceptor refuses to start but
// still handles directly pushed events. diag is the console's own
// diagnostics logger and must never route back through the interceptor.
func New(enabled bool, r *resolve.Resolver, diag *slog.Logger) *Interceptor {
	if diag == nil {
		diag = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Interceptor{
		enabled:  enabled,
		previews: make(map[uint64]PreviewFunc),
		resolver: r,
		diag:     diag,
		now:      time.Now,
	}
}

// Attach adds an aggregator to the fan-out set and runs its capture hook.
func (in *Interceptor) Attach(a aggregate.Aggregator) {
	in.mu.Lock()
	in.aggs = append(in.aggs, a)
	in.mu.Unlock()
	a.StartCapture()
}

// Detach removes an aggregator from the fan-out set and runs its capture
// hook. Unknown aggregators are ignored.
func (in *Interceptor) Detach(a aggregate.Aggregator) {
	in.mu.Lock()
	for i, have := range in.aggs {
		if have == a {
			in.aggs = append(in.aggs[:i], in.aggs[i+1:]...)
			break
		}
	}
	in.mu.Unlock()
	a.StopCapture()
}

// Start installs the interceptor as the default slog sink. No-op when
// disabled or already started. The previous default logger is restored by
// Stop.
func (in *Interceptor) Start() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.enabled || in.started {
		return
	}
	in.prev = slog.Default()
	slog.SetDefault(slog.New(NewHandler(in, slog.LevelDebug)))
	in.started = true
}

// Stop detaches from the host sink, restoring the default logger that was
// active before Start. No-op if not started.
func (in *Interceptor) Stop() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.started {
		return
	}
	slog.SetDefault(in.prev)
	in.prev = nil
	in.started = false
}

// Started reports whether the interceptor currently owns the host sink.
func (in *Interceptor) Started() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.started
}

// RegisterPreviewCallback adds cb to the preview set and returns a token
// for unregistering. No ordering guarantee among callbacks.
func (in *Interceptor) RegisterPreviewCallback(cb PreviewFunc) uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.nextToken++
	in.previews[in.nextToken] = cb
	return in.nextToken
}

// UnregisterPreviewCallback removes the callback registered under token.
func (in *Interceptor) UnregisterPreviewCallback(token uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.previews, token)
}

// HandleRawEvent builds a record from one host event and distributes it.
// Invoked synchronously on every host log call.
func (in *Interceptor) HandleRawEvent(evt model.RawEvent) {
	in.mu.Lock()
	enabled := in.enabled
	in.mu.Unlock()
	if !enabled {
		return
	}

	var source, trace string
	if evt.Severity == model.SeverityException {
		source, trace = resolve.FromTrace(evt.StackTrace)
	} else {
		source, trace = in.resolver.Resolve(1)
	}

	in.mu.Lock()
	in.nextID++
	id := in.nextID
	previews := make(map[uint64]PreviewFunc, len(in.previews))
	for t, cb := range in.previews {
		previews[t] = cb
	}
	aggs := append([]aggregate.Aggregator(nil), in.aggs...)
	in.mu.Unlock()

	rec := model.NewLogRecord(id, in.now(), evt, source, trace)

	var bad []uint64
	var firstErr any
	for token, cb := range previews {
		if err := in.callPreview(cb, rec); err != nil {
			bad = append(bad, token)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(bad) > 0 {
		in.mu.Lock()
		for _, token := range bad {
			delete(in.previews, token)
		}
		in.mu.Unlock()
		in.diag.Warn("preview callback panicked, unregistered",
			"removed", len(bad), "panic", fmt.Sprint(firstErr))
		in.distribute(in.warningRecord(firstErr), aggs)
	}

	in.distribute(rec, aggs)
}

// callPreview invokes one callback, converting a panic into a non-nil
// return so a single buggy subscriber cannot crash the pipeline.
func (in *Interceptor) callPreview(cb PreviewFunc, rec *model.LogRecord) (panicked any) {
	defer func() {
		if r := recover(); r != nil {
			panicked = r
		}
	}()
	cb(rec)
	return nil
}

// distribute hands each aggregator its own copy so one strategy's merge
// bookkeeping never bleeds into another's stored records.
func (in *Interceptor) distribute(rec *model.LogRecord, aggs []aggregate.Aggregator) {
	for _, a := range aggs {
		a.Ingest(rec.Clone())
	}
}

// warningRecord synthesizes the internal warning about a removed callback.
// It goes to aggregators only, never back through the preview set.
func (in *Interceptor) warningRecord(panicVal any) *model.LogRecord {
	in.mu.Lock()
	in.nextID++
	id := in.nextID
	in.mu.Unlock()

	evt := model.RawEvent{
		Message:  fmt.Sprintf("preview callback panicked and was removed: %v", panicVal),
		Severity: model.SeverityWarning,
	}
	return model.NewLogRecord(id, in.now(), evt, previewSource, "")
}
