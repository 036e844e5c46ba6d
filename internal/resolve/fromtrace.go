package resolve

import "strings"

// FromTrace derives a source from a host-supplied stack trace, used for
// exception events where the trace is authoritative and the live stack is
// not walked. The source is the callable named by the first frame line;
// the trace is reshaped so every frame line carries the trace marker.
func FromTrace(trace string) (source, reshaped string) {
	lines := strings.Split(trace, "\n")

	var out []string
	source = Unknown
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		frame := strings.TrimPrefix(line, "at ")
		if source == Unknown {
			source = frameSource(frame)
		}
		out = append(out, "at "+frame)
	}
	if len(out) == 0 {
		return Unknown, ""
	}
	return source, strings.Join(out, "\n")
}

// frameSource cuts the callable name out of one trace frame line, dropping
// an argument list or location suffix.
func frameSource(frame string) string {
	if i := strings.IndexByte(frame, '('); i >= 0 {
		frame = frame[:i]
	}
	if i := strings.IndexByte(frame, ' '); i >= 0 {
		frame = frame[:i]
	}
	frame = strings.TrimSpace(frame)
	if frame == "" {
		return Unknown
	}
	return SourceForFunction(frame)
}
