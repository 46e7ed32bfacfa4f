package preprocess

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var errSyntax = errors.New("syntax error")

type exprParser struct {
	s      *state
	toks   []string
	pos    int
	active []string
}

// eval evaluates a #if expression: integer literals, macro names, defined(X),
// parentheses, `!`, comparisons, `&&` and `||`. Undefined names evaluate to 0.
func (s *state) eval(expr string) (int64, error) {
	toks, err := lexExpr(expr)
	if err != nil {
		return 0, err
	}
	p := &exprParser{s: s, toks: toks}
	v, err := p.or()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("%w: unexpected %q", errSyntax, p.toks[p.pos])
	}
	return v, nil
}

func lexExpr(expr string) ([]string, error) {
	var toks []string
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isIdentByte(c):
			j := i + 1
			for j < len(expr) && isIdentByte(expr[j]) {
				j++
			}
			toks = append(toks, expr[i:j])
			i = j
		case c == '/' && i+1 < len(expr) && expr[i+1] == '/':
			return toks, nil
		default:
			if i+1 < len(expr) {
				switch two := expr[i : i+2]; two {
				case "&&", "||", "==", "!=", "<=", ">=":
					toks = append(toks, two)
					i += 2
					continue
				}
			}
			if !strings.ContainsRune("()!<>", rune(c)) {
				return nil, fmt.Errorf("%w: unexpected character %q", errSyntax, c)
			}
			toks = append(toks, string(c))
			i++
		}
	}
	return toks, nil
}

func (p *exprParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *exprParser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *exprParser) expect(tok string) error {
	if got := p.next(); got != tok {
		if got == "" {
			got = "end of expression"
		}
		return fmt.Errorf("%w: expected %q, got %q", errSyntax, tok, got)
	}
	return nil
}

func (p *exprParser) or() (int64, error) {
	l, err := p.and()
	if err != nil {
		return 0, err
	}
	for p.peek() == "||" {
		p.next()
		r, err := p.and()
		if err != nil {
			return 0, err
		}
		l = b2i(l != 0 || r != 0)
	}
	return l, nil
}

func (p *exprParser) and() (int64, error) {
	l, err := p.cmp()
	if err != nil {
		return 0, err
	}
	for p.peek() == "&&" {
		p.next()
		r, err := p.cmp()
		if err != nil {
			return 0, err
		}
		l = b2i(l != 0 && r != 0)
	}
	return l, nil
}

func (p *exprParser) cmp() (int64, error) {
	l, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		switch op {
		case "==", "!=", "<", "<=", ">", ">=":
		default:
			return l, nil
		}
		p.next()
		r, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "==":
			l = b2i(l == r)
		case "!=":
			l = b2i(l != r)
		case "<":
			l = b2i(l < r)
		case "<=":
			l = b2i(l <= r)
		case ">":
			l = b2i(l > r)
		case ">=":
			l = b2i(l >= r)
		}
	}
}

func (p *exprParser) unary() (int64, error) {
	if p.peek() == "!" {
		p.next()
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		return b2i(v == 0), nil
	}
	return p.primary()
}

func (p *exprParser) primary() (int64, error) {
	tok := p.next()
	switch {
	case tok == "":
		return 0, fmt.Errorf("%w: unexpected end of expression", errSyntax)
	case tok == "(":
		v, err := p.or()
		if err != nil {
			return 0, err
		}
		return v, p.expect(")")
	case tok == "defined":
		paren := p.peek() == "("
		if paren {
			p.next()
		}
		name := p.next()
		if !isIdent(name) {
			return 0, fmt.Errorf("%w: defined needs a macro name", errSyntax)
		}
		if paren {
			if err := p.expect(")"); err != nil {
				return 0, err
			}
		}
		_, ok := p.s.macros[name]
		return b2i(ok), nil
	case isDigit(tok[0]):
		return parseInt(tok)
	case isIdent(tok):
		return p.macroValue(tok)
	}
	return 0, fmt.Errorf("%w: unexpected %q", errSyntax, tok)
}

// macroValue evaluates the replacement text of a macro used in a condition.
func (p *exprParser) macroValue(name string) (int64, error) {
	value, ok := p.s.macros[name]
	if !ok {
		return 0, nil
	}
	if slices.Contains(p.active, name) {
		return 0, fmt.Errorf("macro %q refers to itself", name)
	}
	if len(p.active) > maxExpansionDepth {
		return 0, fmt.Errorf("macro expansion too deep at %q", name)
	}
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("macro %q has no value", name)
	}
	toks, err := lexExpr(value)
	if err != nil {
		return 0, fmt.Errorf("macro %q: %w", name, err)
	}
	sub := &exprParser{s: p.s, toks: toks, active: append(p.active, name)}
	v, err := sub.or()
	if err != nil {
		return 0, fmt.Errorf("macro %q: %w", name, err)
	}
	if sub.pos != len(sub.toks) {
		return 0, fmt.Errorf("macro %q: %w: trailing %q", name, errSyntax, sub.toks[sub.pos])
	}
	return v, nil
}

func parseInt(tok string) (int64, error) {
	t := strings.TrimRight(tok, "uUlLi")
	v, err := strconv.ParseInt(t, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer %q", errSyntax, tok)
	}
	return v, nil
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
