// Package query implements the console's quick-filter expression language.
// Expressions are evaluated at read time over aggregator output; stored
// records are never touched.
//
//	source:Player.TakeDamage AND NOT severity:info
//	"connection lost" OR msg:timeout
//
// Bare words and quoted strings full-text match across all fields.
package query

import (
	"strconv"
	"strings"
)

// Entry is one displayable record. The interface decouples the language
// from the record type.
type Entry interface {
	ID() uint64
	Severity() string
	Source() string
	Message() string
}

// Expr is a compiled quick-filter expression.
type Expr interface {
	matches(e Entry) bool
}

// Match evaluates x against e. A nil expression matches everything.
func Match(x Expr, e Entry) bool {
	if x == nil {
		return true
	}
	return x.matches(e)
}

type andExpr struct{ left, right Expr }

func (x andExpr) matches(e Entry) bool { return x.left.matches(e) && x.right.matches(e) }

type orExpr struct{ left, right Expr }

func (x orExpr) matches(e Entry) bool { return x.left.matches(e) || x.right.matches(e) }

type notExpr struct{ inner Expr }

func (x notExpr) matches(e Entry) bool { return !x.inner.matches(e) }

// fieldExpr matches one named field, equal or not-equal, case-insensitive.
type fieldExpr struct {
	key    string
	value  string
	negate bool
}

func (x fieldExpr) matches(e Entry) bool {
	eq := strings.EqualFold(fieldValue(x.key, e), x.value)
	return eq != x.negate
}

// textExpr full-text matches across every field, case-insensitive.
type textExpr struct{ value string }

func (x textExpr) matches(e Entry) bool {
	needle := strings.ToLower(x.value)
	for _, f := range []string{e.Source(), e.Message(), e.Severity()} {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func fieldValue(key string, e Entry) string {
	switch strings.ToLower(key) {
	case "source", "src":
		return e.Source()
	case "message", "msg":
		return e.Message()
	case "severity", "level", "lvl":
		return e.Severity()
	case "id":
		return strconv.FormatUint(e.ID(), 10)
	default:
		return ""
	}
}
