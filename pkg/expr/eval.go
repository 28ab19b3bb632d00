package expr

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind discriminates the two value types the language knows about.
type Kind int

const (
	KindNumber Kind = iota
	KindBool
)

func (k Kind) String() string {
	if k == KindBool {
		return "boolean"
	}
	return "number"
}

// Value is a number or a boolean. Numbers are exact decimals so that price
// expressions never accumulate binary floating error.
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Bool bool
}

// Number wraps a decimal as an expression value.
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// NumberFromFloat wraps a float64 as an expression value.
func NumberFromFloat(f float64) Value { return Number(decimal.NewFromFloat(f)) }

// NumberFromInt wraps an int as an expression value.
func NumberFromInt(i int64) Value { return Number(decimal.NewFromInt(i)) }

// Boolean wraps a bool as an expression value.
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Vars is the variable environment an expression is evaluated against.
type Vars map[string]Value

// EvalError is a runtime evaluation failure: an unknown variable, a type
// mismatch, or division by zero. Callers treat it as "rule does not apply"
// and record a warning instead of aborting the evaluation.
type EvalError struct {
	Expr   string
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %q: %s", e.Expr, e.Reason)
}

// Eval evaluates the program against vars.
func (p *Program) Eval(vars Vars) (Value, error) {
	v, err := p.root.eval(vars)
	if err != nil {
		return Value{}, &EvalError{Expr: p.src, Reason: err.Error()}
	}
	return v, nil
}

// EvalBool evaluates the program and requires a boolean result.
func (p *Program) EvalBool(vars Vars) (bool, error) {
	v, err := p.Eval(vars)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, &EvalError{Expr: p.src, Reason: "expression yields a number, expected a boolean condition"}
	}
	return v.Bool, nil
}

// EvalNumber evaluates the program and requires a numeric result.
func (p *Program) EvalNumber(vars Vars) (decimal.Decimal, error) {
	v, err := p.Eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	if v.Kind != KindNumber {
		return decimal.Zero, &EvalError{Expr: p.src, Reason: "expression yields a boolean, expected a numeric value"}
	}
	return v.Num, nil
}

type node interface {
	eval(vars Vars) (Value, error)
}

type numberNode struct{ val decimal.Decimal }

func (n *numberNode) eval(Vars) (Value, error) { return Number(n.val), nil }

type boolNode struct{ val bool }

func (n *boolNode) eval(Vars) (Value, error) { return Boolean(n.val), nil }

type varNode struct{ name string }

func (n *varNode) eval(vars Vars) (Value, error) {
	v, ok := vars[n.name]
	if !ok {
		return Value{}, fmt.Errorf("unknown variable %q", n.name)
	}
	return v, nil
}

type unaryNode struct {
	op      tokenType
	operand node
}

func (n *unaryNode) eval(vars Vars) (Value, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case tokMinus:
		if v.Kind != KindNumber {
			return Value{}, fmt.Errorf("cannot negate a %s", v.Kind)
		}
		return Number(v.Num.Neg()), nil
	case tokNot:
		if v.Kind != KindBool {
			return Value{}, fmt.Errorf("'not' requires a boolean, got a %s", v.Kind)
		}
		return Boolean(!v.Bool), nil
	}
	return Value{}, fmt.Errorf("unsupported unary operator")
}

type binaryNode struct {
	op          tokenType
	left, right node
}

func (n *binaryNode) eval(vars Vars) (Value, error) {
	// Short-circuit the boolean connectives; the right side of "and"/"or"
	// may reference a variable that is only valid when the left side holds.
	if n.op == tokAnd || n.op == tokOr {
		l, err := n.left.eval(vars)
		if err != nil {
			return Value{}, err
		}
		if l.Kind != KindBool {
			return Value{}, fmt.Errorf("%s requires booleans, got a %s", n.op, l.Kind)
		}
		if n.op == tokAnd && !l.Bool {
			return Boolean(false), nil
		}
		if n.op == tokOr && l.Bool {
			return Boolean(true), nil
		}
		r, err := n.right.eval(vars)
		if err != nil {
			return Value{}, err
		}
		if r.Kind != KindBool {
			return Value{}, fmt.Errorf("%s requires booleans, got a %s", n.op, r.Kind)
		}
		return Boolean(r.Bool), nil
	}

	l, err := n.left.eval(vars)
	if err != nil {
		return Value{}, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case tokPlus, tokMinus, tokStar, tokSlash:
		if l.Kind != KindNumber || r.Kind != KindNumber {
			return Value{}, fmt.Errorf("arithmetic requires numbers, got %s %s %s", l.Kind, n.op, r.Kind)
		}
		switch n.op {
		case tokPlus:
			return Number(l.Num.Add(r.Num)), nil
		case tokMinus:
			return Number(l.Num.Sub(r.Num)), nil
		case tokStar:
			return Number(l.Num.Mul(r.Num)), nil
		case tokSlash:
			if r.Num.IsZero() {
				return Value{}, fmt.Errorf("division by zero")
			}
			return Number(l.Num.Div(r.Num)), nil
		}

	case tokLT, tokLE, tokGT, tokGE:
		if l.Kind != KindNumber || r.Kind != KindNumber {
			return Value{}, fmt.Errorf("comparison requires numbers, got %s %s %s", l.Kind, n.op, r.Kind)
		}
		cmp := l.Num.Cmp(r.Num)
		switch n.op {
		case tokLT:
			return Boolean(cmp < 0), nil
		case tokLE:
			return Boolean(cmp <= 0), nil
		case tokGT:
			return Boolean(cmp > 0), nil
		case tokGE:
			return Boolean(cmp >= 0), nil
		}

	case tokEQ, tokNE:
		if l.Kind != r.Kind {
			return Value{}, fmt.Errorf("cannot compare a %s with a %s", l.Kind, r.Kind)
		}
		var equal bool
		if l.Kind == KindNumber {
			equal = l.Num.Equal(r.Num)
		} else {
			equal = l.Bool == r.Bool
		}
		if n.op == tokEQ {
			return Boolean(equal), nil
		}
		return Boolean(!equal), nil
	}

	return Value{}, fmt.Errorf("unsupported operator")
}
