package model

import "strings"

// Severity classifies a log event. Exception is reserved for events that
// arrive with a host-supplied stack trace (panics, recovered errors).
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityException

	// SeverityCount is the number of distinct severities; counter arrays
	// are sized with it.
	SeverityCount = 4
)

// String returns the canonical upper-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityException:
		return "EXCEPTION"
	default:
		return "INFO"
	}
}

// ParseSeverity converts a string to a Severity. Unknown strings map to
// SeverityInfo.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "WARN", "WARNING":
		return SeverityWarning
	case "ERROR":
		return SeverityError
	case "EXCEPTION", "PANIC", "FATAL":
		return SeverityException
	default:
		return SeverityInfo
	}
}
