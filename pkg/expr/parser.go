// Package expr implements the sandboxed expression language used by rule
// conditions and action values. The grammar is deliberately closed: numeric
// and boolean literals, named variables, arithmetic, comparisons, and
// boolean connectives. There are no function calls, no strings, no indexing,
// and no loops, so a compiled expression can never reach host facilities.
package expr

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Program is a compiled expression ready for repeated evaluation.
type Program struct {
	src  string
	root node
	vars map[string]struct{}
}

// Compile parses src into a Program. Anything outside the grammar is
// rejected here with a SyntaxError so that invalid rules can be refused
// when they are saved, not when a live evaluation trips over them.
func Compile(src string) (*Program, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokEOF {
		return nil, p.errorf("unexpected %s", p.peek().typ)
	}

	vars := make(map[string]struct{})
	collectVars(root, vars)

	return &Program{src: src, root: root, vars: vars}, nil
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.src }

// Variables returns the sorted set of variable names the expression
// references, for validation against the known context variables.
func (p *Program) Variables() []string {
	names := make([]string, 0, len(p.vars))
	for name := range p.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Expr: p.src, Pos: p.peek().pos, Message: fmt.Sprintf(format, args...)}
}

// or := and ("or" and)*
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tokOr, left: left, right: right}
	}
	return left, nil
}

// and := unaryBool ("and" unaryBool)*
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tokAnd, left: left, right: right}
	}
	return left, nil
}

// not := "not" not | comparison
func (p *parser) parseNot() (node, error) {
	if p.peek().typ == tokNot {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tokNot, operand: operand}, nil
	}
	return p.parseComparison()
}

// comparison := additive (cmpOp additive)?
// Comparisons do not chain; "a < b < c" is rejected.
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	switch op := p.peek().typ; op {
	case tokLT, tokLE, tokGT, tokGE, tokEQ, tokNE:
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

// additive := multiplicative (("+"|"-") multiplicative)*
func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().typ
		if op != tokPlus && op != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

// multiplicative := unary (("*"|"/") unary)*
func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().typ
		if op != tokStar && op != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

// unary := "-" unary | primary
func (p *parser) parseUnary() (node, error) {
	if p.peek().typ == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tokMinus, operand: operand}, nil
	}
	return p.parsePrimary()
}

// primary := number | identifier | "true" | "false" | "(" or ")"
func (p *parser) parsePrimary() (node, error) {
	switch t := p.peek(); t.typ {
	case tokNumber:
		p.next()
		d, err := decimal.NewFromString(t.lit)
		if err != nil {
			return nil, &SyntaxError{Expr: p.src, Pos: t.pos, Message: "malformed number"}
		}
		return &numberNode{val: d}, nil

	case tokTrue:
		p.next()
		return &boolNode{val: true}, nil

	case tokFalse:
		p.next()
		return &boolNode{val: false}, nil

	case tokIdent:
		p.next()
		if p.peek().typ == tokLParen {
			return nil, &SyntaxError{Expr: p.src, Pos: p.peek().pos, Message: "function calls are not allowed"}
		}
		return &varNode{name: t.lit}, nil

	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().typ != tokRParen {
			return nil, p.errorf("expected ')', found %s", p.peek().typ)
		}
		p.next()
		return inner, nil

	default:
		return nil, p.errorf("unexpected %s", t.typ)
	}
}

func collectVars(n node, into map[string]struct{}) {
	switch v := n.(type) {
	case *varNode:
		into[v.name] = struct{}{}
	case *unaryNode:
		collectVars(v.operand, into)
	case *binaryNode:
		collectVars(v.left, into)
		collectVars(v.right, into)
	}
}
