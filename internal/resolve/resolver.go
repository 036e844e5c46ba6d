// Package resolve turns the call stack captured at a log call site into a
// short source identifier, skipping wrapper and helper frames.
package resolve

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// Unknown is returned when no application frame survives the walk, e.g. a
// log raised from the runtime itself.
const Unknown = "UNKNOWN"

const maxStackDepth = 64

// chainPrefixes name function paths belonging to the logging call chain
// itself. Frames matching these are dropped before the override walk starts.
var chainPrefixes = []string{
	"log/slog",
	"runtime.",
	"github.com/quillside/logdeck/internal/intercept.(*Interceptor)",
	"github.com/quillside/logdeck/internal/intercept.(*Handler)",
	"github.com/quillside/logdeck.(*Console)",
}

// Frame is one resolved stack frame.
type Frame struct {
	Source string // short "Type.Method" identifier
	File   string
	Line   int
}

// Resolver applies persisted skip rules to captured call stacks. Exact
// overrides advance one frame; prefix overrides advance past every
// consecutive frame sharing the prefix, then the walk retries from scratch
// since skipping may expose another overridden frame.
type Resolver struct {
	mu       sync.RWMutex
	exact    map[string]struct{}
	prefixes []string
}

// New returns a resolver with no overrides.
func New() *Resolver {
	return &Resolver{exact: make(map[string]struct{})}
}

// SetOverrides replaces the skip rules.
func (r *Resolver) SetOverrides(exact, prefixes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exact = make(map[string]struct{}, len(exact))
	for _, s := range exact {
		r.exact[s] = struct{}{}
	}
	r.prefixes = append([]string(nil), prefixes...)
}

// AddExactOverride marks a source as a wrapper to skip. Idempotent.
func (r *Resolver) AddExactOverride(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exact[source]; ok {
		return false
	}
	r.exact[source] = struct{}{}
	return true
}

// AddPrefixOverride marks every source under prefix as helper frames to
// skip. Idempotent.
func (r *Resolver) AddPrefixOverride(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.prefixes {
		if p == prefix {
			return false
		}
	}
	r.prefixes = append(r.prefixes, prefix)
	return true
}

// Resolve captures the current call stack, drops the logging chain's own
// frames, and walks the remainder under the override rules. skip counts
// additional caller frames to drop before the chain filter (the caller's
// own dispatch depth).
func (r *Resolver) Resolve(skip int) (source, trace string) {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return Unknown, ""
	}

	frames := make([]Frame, 0, n)
	it := runtime.CallersFrames(pcs[:n])
	for {
		f, more := it.Next()
		if f.Function != "" && !isChainFrame(f.Function) {
			frames = append(frames, Frame{
				Source: SourceForFunction(f.Function),
				File:   f.File,
				Line:   f.Line,
			})
		}
		if !more {
			break
		}
	}
	return r.ResolveFrames(frames)
}

// ResolveFrames runs the override walk over an already-captured stack.
// Split out so synthetic stacks can be fed in tests.
func (r *Resolver) ResolveFrames(frames []Frame) (source, trace string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	depth := 0
	// Each branch strictly advances depth, so len(frames) iterations is a
	// hard upper bound; guard against regressions anyway.
	for iter := 0; depth < len(frames) && iter <= maxStackDepth; iter++ {
		src := frames[depth].Source
		if _, ok := r.exact[src]; ok {
			depth++
			continue
		}
		if p := r.matchPrefix(src); p != "" {
			for depth < len(frames) && strings.HasPrefix(frames[depth].Source, p) {
				depth++
			}
			continue
		}
		return src, FormatTrace(frames[depth:])
	}
	return Unknown, ""
}

func (r *Resolver) matchPrefix(source string) string {
	for _, p := range r.prefixes {
		if strings.HasPrefix(source, p) {
			return p
		}
	}
	return ""
}

func isChainFrame(function string) bool {
	for _, p := range chainPrefixes {
		if strings.HasPrefix(function, p) {
			return true
		}
	}
	return false
}

// SourceForFunction shortens a fully qualified function path to
// "Type.Method" for methods or "pkg.Func" for free functions.
// "a/b/pkg.(*Type).Method" becomes "Type.Method".
func SourceForFunction(function string) string {
	if function == "" {
		return Unknown
	}
	if i := strings.LastIndexByte(function, '/'); i >= 0 {
		function = function[i+1:]
	}
	pkg := function
	rest := ""
	if i := strings.IndexByte(function, '.'); i >= 0 {
		pkg, rest = function[:i], function[i+1:]
	}
	rest = strings.ReplaceAll(rest, "(*", "")
	rest = strings.ReplaceAll(rest, ")", "")
	if strings.Contains(rest, ".") {
		return rest
	}
	if rest == "" {
		return pkg
	}
	return pkg + "." + rest
}

// FormatTrace renders frames one per line, each prefixed with the trace
// marker. The format is cosmetic and never feeds similarity hashing.
func FormatTrace(frames []Frame) string {
	var b strings.Builder
	for i, f := range frames {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "at %s (%s:%d)", f.Source, f.File, f.Line)
	}
	return b.String()
}
