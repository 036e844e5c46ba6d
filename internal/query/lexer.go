package query

import (
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenWord
	tokenString
	tokenColon
	tokenLParen
	tokenRParen
	tokenAnd
	tokenOr
	tokenNot
	tokenNeq
)

type token struct {
	typ   tokenType
	value string
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() token {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{typ: tokenEOF}
	}

	switch ch := l.input[l.pos]; ch {
	case ':':
		l.pos++
		return token{typ: tokenColon, value: ":"}
	case '(':
		l.pos++
		return token{typ: tokenLParen, value: "("}
	case ')':
		l.pos++
		return token{typ: tokenRParen, value: ")"}
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{typ: tokenNeq, value: "!="}
		}
		// Stray '!' with no '=': drop it.
		l.pos++
		return l.next()
	case '"':
		return l.quoted()
	}

	if isWordByte(l.input[l.pos]) {
		return l.word()
	}
	// Unknown byte, skip it.
	l.pos++
	return l.next()
}

func (l *lexer) quoted() token {
	l.pos++ // opening quote
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.pos += 2
			continue
		}
		l.pos++
	}
	value := l.input[start:l.pos]
	if l.pos < len(l.input) {
		l.pos++ // closing quote
	}
	return token{typ: tokenString, value: value}
}

func (l *lexer) word() token {
	start := l.pos
	for l.pos < len(l.input) && isWordByte(l.input[l.pos]) {
		l.pos++
	}
	value := l.input[start:l.pos]

	switch strings.ToUpper(value) {
	case "AND":
		return token{typ: tokenAnd, value: value}
	case "OR":
		return token{typ: tokenOr, value: value}
	case "NOT":
		return token{typ: tokenNot, value: value}
	}
	return token{typ: tokenWord, value: value}
}

func isWordByte(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_' || ch == '-' || ch == '.'
}
