// Package logdeck is an embeddable developer log console. It intercepts the
// host's diagnostic log events, attributes each to the code that produced
// it, and maintains bounded views of the stream under three aggregation
// strategies: a plain chronological trail, consecutive-run collapsing, and
// global merge-by-similarity.
package logdeck

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/quillside/logdeck/internal/aggregate"
	"github.com/quillside/logdeck/internal/config"
	"github.com/quillside/logdeck/internal/filter"
	"github.com/quillside/logdeck/internal/intercept"
	"github.com/quillside/logdeck/internal/logging"
	"github.com/quillside/logdeck/internal/model"
	"github.com/quillside/logdeck/internal/query"
	"github.com/quillside/logdeck/internal/resolve"
	"github.com/quillside/logdeck/internal/settings"
	"github.com/quillside/logdeck/internal/sink"
)

// Re-exported record types; hosts should not need to reach into internal
// packages.
type (
	RawEvent  = model.RawEvent
	LogRecord = model.LogRecord
	Severity  = model.Severity
)

const (
	SeverityInfo      = model.SeverityInfo
	SeverityWarning   = model.SeverityWarning
	SeverityError     = model.SeverityError
	SeverityException = model.SeverityException
)

// Config is the console's bootstrap configuration.
type Config = config.Config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a YAML config file (optional) plus LOGDECK_* environment
// overrides.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Strategy selects one of the live aggregation views.
type Strategy string

const (
	StrategyPlain    Strategy = "plain"
	StrategyCollapse Strategy = "collapse"
	StrategySmart    Strategy = "smart"
)

// ViewOptions narrow what View returns. Both filters apply at read time
// only; stored records are unaffected.
type ViewOptions struct {
	// Query is a quick-filter expression, e.g.
	// `source:Player.TakeDamage AND NOT severity:info`. Empty matches all.
	Query string
	// Severities limits output to the listed severities. Empty means all.
	Severities []Severity
}

// Console owns the whole pipeline: filter, resolver, interceptor, the three
// live aggregators, a snapshot for pause, persisted settings and the
// optional on-disk sink.
type Console struct {
	diag        *slog.Logger
	filter      *filter.Filter
	resolver    *resolve.Resolver
	interceptor *intercept.Interceptor
	store       *settings.Store

	plain    *aggregate.PlainAggregator
	collapse *aggregate.CollapseAggregator
	smart    *aggregate.SmartAggregator
	snapshot *aggregate.SnapshotAggregator

	sink      *sink.Sink
	sinkToken uint64

	mu         sync.Mutex
	paused     bool
	pausedFrom Strategy
}

// New builds a console from cfg. Persisted settings under cfg.DataDir are
// merged in: the silence rules and skip overrides from the previous session
// apply immediately, and a persisted capacity overrides the configured one.
func New(cfg Config) (*Console, error) {
	diag := logging.New(logging.ParseLevel(cfg.LogLevel))

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("logdeck: data dir: %w", err)
	}

	store := settings.NewStore(filepath.Join(cfg.DataDir, "settings.json"))
	if err := store.Load(); err != nil {
		diag.Warn("settings unreadable, using defaults", "err", err)
	}
	st := store.Get()

	capacity := cfg.Capacity
	if st.Capacity > 0 {
		capacity = st.Capacity
	}

	f := filter.New()
	f.Load(st.SilenceSources, st.SilencePrefixes)

	r := resolve.New()
	r.SetOverrides(st.SkipSources, st.SkipPrefixes)

	c := &Console{
		diag:     diag,
		filter:   f,
		resolver: r,
		store:    store,
		plain:    aggregate.NewPlain(capacity, f),
		collapse: aggregate.NewCollapse(capacity, f),
		smart:    aggregate.NewSmart(capacity, f),
		snapshot: aggregate.NewSnapshot(),
	}
	c.interceptor = intercept.New(cfg.Enabled && st.Enabled, r, diag)
	c.interceptor.Attach(c.plain)
	c.interceptor.Attach(c.collapse)
	c.interceptor.Attach(c.smart)

	if cfg.Sink.Enabled {
		path := cfg.Sink.Path
		if path == "" {
			path = filepath.Join(cfg.DataDir, "console.ndjson")
		}
		sk, err := sink.New(path,
			sink.WithMaxSize(cfg.Sink.MaxSize),
			sink.WithCompression(cfg.Sink.Compress))
		if err != nil {
			return nil, fmt.Errorf("logdeck: %w", err)
		}
		c.sink = sk
		c.sinkToken = c.interceptor.RegisterPreviewCallback(func(rec *model.LogRecord) {
			if err := sk.Write(rec); err != nil {
				diag.Warn("sink write failed", "err", err)
			}
		})
	}

	return c, nil
}

// Start installs the console as the host's log sink. No-op when disabled
// or already started.
func (c *Console) Start() { c.interceptor.Start() }

// Stop detaches from the host sink, restoring the previous default logger.
func (c *Console) Stop() { c.interceptor.Stop() }

// Started reports whether the console currently owns the host sink.
func (c *Console) Started() bool { return c.interceptor.Started() }

// Handle pushes one raw event directly, for hosts that do not log through
// slog.
func (c *Console) Handle(evt RawEvent) { c.interceptor.HandleRawEvent(evt) }

// RegisterPreviewCallback mirrors the interceptor's preview registry.
func (c *Console) RegisterPreviewCallback(cb func(rec *LogRecord)) uint64 {
	return c.interceptor.RegisterPreviewCallback(cb)
}

// UnregisterPreviewCallback removes a preview callback by token.
func (c *Console) UnregisterPreviewCallback(token uint64) {
	c.interceptor.UnregisterPreviewCallback(token)
}

// Pause freezes the named view into the snapshot. Ingestion continues
// underneath; reads of that view serve the frozen copy until Resume.
func (c *Console) Pause(s Strategy) error {
	agg, err := c.aggregator(s)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.LoadLogs(agg)
	c.paused = true
	c.pausedFrom = s
	return nil
}

// Resume drops the frozen view.
func (c *Console) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Paused reports whether a view is currently frozen.
func (c *Console) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// View returns the records of the selected view, most recent first, with
// the read-time filters of opts applied. While paused, the frozen snapshot
// answers for the view it was taken from.
func (c *Console) View(s Strategy, opts ViewOptions) ([]LogRecord, error) {
	agg, err := c.viewAggregator(s)
	if err != nil {
		return nil, err
	}

	expr, err := query.Compile(opts.Query)
	if err != nil {
		return nil, fmt.Errorf("logdeck: quick filter: %w", err)
	}

	var enabled map[Severity]bool
	if len(opts.Severities) > 0 {
		enabled = make(map[Severity]bool, len(opts.Severities))
		for _, sev := range opts.Severities {
			enabled[sev] = true
		}
	}

	recs := agg.GetLogRecords()
	out := recs[:0]
	for _, rec := range recs {
		if enabled != nil && !enabled[rec.Severity] {
			continue
		}
		if !query.Match(expr, recordEntry{rec}) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Flush reports and clears the dirty flag of the selected view, snapshot
// included while paused.
func (c *Console) Flush(s Strategy) (bool, error) {
	agg, err := c.viewAggregator(s)
	if err != nil {
		return false, err
	}
	return agg.FlushBufferedLogs(), nil
}

// Counts returns the per-severity event counters of the selected view.
func (c *Console) Counts(s Strategy) (map[Severity]int, error) {
	agg, err := c.viewAggregator(s)
	if err != nil {
		return nil, err
	}
	return agg.Counts(), nil
}

// ClearAll empties every live view and its counters.
func (c *Console) ClearAll() {
	c.plain.ClearAllLogs()
	c.collapse.ClearAllLogs()
	c.smart.ClearAllLogs()
}

// SilenceSource silences an exact source, evicts matching stored records
// from every live view and persists the rule.
func (c *Console) SilenceSource(source string) {
	if c.filter.AddSilenceBySource(source) {
		c.applyFilter()
	}
}

// SilencePrefix silences every source under prefix, evicts matching stored
// records from every live view and persists the rule.
func (c *Console) SilencePrefix(prefix string) {
	if c.filter.AddSilenceByPrefix(prefix) {
		c.applyFilter()
	}
}

// applyFilter pushes the extended filter to every live aggregator. There is
// no notification from the filter itself; this is the one place that owns
// the follow-up.
func (c *Console) applyFilter() {
	c.plain.UpdateFilter()
	c.collapse.UpdateFilter()
	c.smart.UpdateFilter()

	exact, prefixes := c.filter.Snapshot()
	if err := c.store.SetSilenceRules(exact, prefixes); err != nil {
		c.diag.Warn("silence rules not persisted", "err", err)
	}
}

// SkipSource marks a source as a wrapper the resolver walks past, and
// persists the override.
func (c *Console) SkipSource(source string) {
	if c.resolver.AddExactOverride(source) {
		if err := c.store.AddSkipSource(source); err != nil {
			c.diag.Warn("skip override not persisted", "err", err)
		}
	}
}

// SkipPrefix marks every source under prefix as helper frames the resolver
// walks past, and persists the override.
func (c *Console) SkipPrefix(prefix string) {
	if c.resolver.AddPrefixOverride(prefix) {
		if err := c.store.AddSkipPrefix(prefix); err != nil {
			c.diag.Warn("skip override not persisted", "err", err)
		}
	}
}

// SinkSession returns the on-disk sink's session ID, or "" with no sink.
func (c *Console) SinkSession() string {
	if c.sink == nil {
		return ""
	}
	return c.sink.SessionID()
}

// Close stops interception and releases the sink.
func (c *Console) Close() error {
	c.Stop()
	if c.sink == nil {
		return nil
	}
	c.interceptor.UnregisterPreviewCallback(c.sinkToken)
	return c.sink.Close()
}

func (c *Console) aggregator(s Strategy) (aggregate.Aggregator, error) {
	switch s {
	case StrategyPlain:
		return c.plain, nil
	case StrategyCollapse:
		return c.collapse, nil
	case StrategySmart:
		return c.smart, nil
	default:
		return nil, fmt.Errorf("logdeck: unknown strategy %q", s)
	}
}

// viewAggregator resolves reads: the snapshot answers for the paused view.
func (c *Console) viewAggregator(s Strategy) (aggregate.Aggregator, error) {
	c.mu.Lock()
	paused, from := c.paused, c.pausedFrom
	c.mu.Unlock()

	if paused && from == s {
		return c.snapshot, nil
	}
	return c.aggregator(s)
}

// recordEntry bridges LogRecord to the quick-filter language.
type recordEntry struct {
	rec LogRecord
}

func (e recordEntry) ID() uint64       { return e.rec.ID }
func (e recordEntry) Severity() string { return e.rec.Severity.String() }
func (e recordEntry) Source() string   { return e.rec.Source }
func (e recordEntry) Message() string  { return e.rec.Message }
