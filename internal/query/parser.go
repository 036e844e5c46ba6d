package query

import "fmt"

// Compile parses input into an expression. An empty input compiles to nil,
// which Match treats as match-all.
func Compile(input string) (Expr, error) {
	if input == "" {
		return nil, nil
	}
	p := &parser{lex: &lexer{input: input}}
	p.advance()
	x, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.typ != tokenEOF {
		return nil, fmt.Errorf("unexpected trailing %q", p.current.value)
	}
	return x, nil
}

type parser struct {
	lex     *lexer
	current token
}

func (p *parser) advance() {
	p.current = p.lex.next()
}

// parseOr handles OR, the lowest precedence level.
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left: left, right: right}
	}
	return left, nil
}

// parseAnd handles explicit AND. Adjacent terms are not implicitly joined;
// the host UI inserts AND between quick-filter tokens.
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current.typ == tokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andExpr{left: left, right: right}
	}
	return left, nil
}

// parseNot handles right-associative NOT.
func (p *parser) parseNot() (Expr, error) {
	if p.current.typ == tokenNot {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.current.typ {
	case tokenLParen:
		p.advance()
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.typ != tokenRParen {
			return nil, fmt.Errorf("expected ')' before %q", p.current.value)
		}
		p.advance()
		return x, nil

	case tokenString:
		value := p.current.value
		p.advance()
		return textExpr{value: value}, nil

	case tokenWord:
		key := p.current.value
		p.advance()

		switch p.current.typ {
		case tokenColon:
			p.advance()
			return p.parseValue(key, false)
		case tokenNeq:
			p.advance()
			return p.parseValue(key, true)
		}
		// Bare word: full-text search.
		return textExpr{value: key}, nil

	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of filter")

	default:
		return nil, fmt.Errorf("unexpected %q", p.current.value)
	}
}

func (p *parser) parseValue(key string, negate bool) (Expr, error) {
	switch p.current.typ {
	case tokenWord, tokenString:
		value := p.current.value
		p.advance()
		return fieldExpr{key: key, value: value, negate: negate}, nil
	default:
		return nil, fmt.Errorf("expected value after %q", key)
	}
}
