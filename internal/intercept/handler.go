package intercept

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quillside/logdeck/internal/model"
)

// StackTraceKey is the attribute key carrying a host-supplied stack trace.
// A record with a non-empty trace attribute is classified as an exception
// and the trace is authoritative for source resolution.
const StackTraceKey = "stacktrace"

// Handler is the slog bridge. Installed as the default handler while the
// interceptor is started, it converts each slog record into a RawEvent and
// pushes it through the pipeline synchronously.
type Handler struct {
	in     *Interceptor
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewHandler creates a bridge handler delivering to in.
func NewHandler(in *Interceptor, level slog.Leveler) *Handler {
	return &Handler{in: in, level: level}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	trace := ""
	appendAttr := func(a slog.Attr) {
		if a.Key == StackTraceKey {
			trace = a.Value.String()
			return
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	evt := model.RawEvent{
		Message:    b.String(),
		StackTrace: trace,
		Severity:   severityForLevel(r.Level, trace),
	}
	h.in.HandleRawEvent(evt)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

// severityForLevel maps slog levels onto console severities. Any record
// carrying a stack trace is an exception regardless of level.
func severityForLevel(level slog.Level, trace string) model.Severity {
	if trace != "" {
		return model.SeverityException
	}
	switch {
	case level >= slog.LevelError:
		return model.SeverityError
	case level >= slog.LevelWarn:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}
