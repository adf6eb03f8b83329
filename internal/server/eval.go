package server

import (
	"errors"
	"fmt"
	"math/big"
	"unicode"
)

var (
	errEmpty          = errors.New("empty equation")
	errUnbalanced     = errors.New("unbalanced parens")
	errDivisionByZero = errors.New("division by zero")
)

// Evaluate computes an equation of integers, + - * / and parentheses with exact rational arithmetic.
// The result is either an integer or a reduced fraction, e.g. "5/6".
func Evaluate(equation string) (string, error) {
	p := &parser{input: []rune(equation)}
	p.skipSpace()
	if p.done() {
		return "", errEmpty
	}

	res, err := p.expression()
	if err != nil {
		return "", err
	}
	p.skipSpace()
	if !p.done() {
		if p.peek() == ')' {
			return "", errUnbalanced
		}
		return "", fmt.Errorf("unexpected symbol %q at position %d", p.peek(), p.pos)
	}
	return res.RatString(), nil
}

// parser is a recursive descent parser over
//
//	expression = term { ("+" | "-") term }
//	term       = factor { ("*" | "/") factor }
//	factor     = ["-"] ( integer | "(" expression ")" )
type parser struct {
	input []rune
	pos   int
}

func (p *parser) done() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() rune {
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.done() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) expression() (*big.Rat, error) {
	acc, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.done() || (p.peek() != '+' && p.peek() != '-') {
			return acc, nil
		}
		op := p.peek()
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return nil, err
		}
		if op == '+' {
			acc.Add(acc, rhs)
		} else {
			acc.Sub(acc, rhs)
		}
	}
}

func (p *parser) term() (*big.Rat, error) {
	acc, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.done() || (p.peek() != '*' && p.peek() != '/') {
			return acc, nil
		}
		op := p.peek()
		p.pos++
		rhs, err := p.factor()
		if err != nil {
			return nil, err
		}
		if op == '*' {
			acc.Mul(acc, rhs)
		} else {
			if rhs.Sign() == 0 {
				return nil, errDivisionByZero
			}
			acc.Quo(acc, rhs)
		}
	}
}

func (p *parser) factor() (*big.Rat, error) {
	p.skipSpace()
	if p.done() {
		return nil, errors.New("unexpected end of equation")
	}

	switch c := p.peek(); {
	case c == '-':
		p.pos++
		res, err := p.factor()
		if err != nil {
			return nil, err
		}
		return res.Neg(res), nil
	case c == '(':
		p.pos++
		p.skipSpace()
		if p.done() {
			return nil, errUnbalanced
		}
		res, err := p.expression()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.done() || p.peek() != ')' {
			return nil, errUnbalanced
		}
		p.pos++
		return res, nil
	case c == ')':
		return nil, errUnbalanced
	case unicode.IsDigit(c):
		start := p.pos
		for !p.done() && unicode.IsDigit(p.peek()) {
			p.pos++
		}
		res, ok := new(big.Rat).SetString(string(p.input[start:p.pos]))
		if !ok {
			return nil, fmt.Errorf("invalid number at position %d", start)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unexpected symbol %q at position %d", c, p.pos)
	}
}
