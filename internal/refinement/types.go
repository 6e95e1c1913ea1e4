// Package refinement implements the typed boolean/arithmetic constraint
// language attached to a handle's schema: parsing is not in scope (a
// constraint is built programmatically, by a recipe author or a
// transport deserializer), but construction, normalization and the
// range algebra used to validate ingested records are.
package refinement

import "fmt"

// Kind is the static type of an expression node.
type Kind int

const (
	KindNumber Kind = iota
	KindBoolean
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// BinaryOp enumerates the binary operators an expression node can use.
type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
)

func (o BinaryOp) String() string {
	names := [...]string{"and", "or", "+", "-", "*", "/", "==", "!=", "<", "<=", ">", ">="}
	if int(o) < len(names) {
		return names[o]
	}
	return "unknown"
}

func (o BinaryOp) isComparison() bool {
	switch o {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

func (o BinaryOp) isLogical() bool {
	return o == OpAnd || o == OpOr
}

func (o BinaryOp) isArithmetic() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	default:
		return false
	}
}

// flip returns the operator with operands swapped: a < b == b > a.
func (o BinaryOp) flip() BinaryOp {
	switch o {
	case OpLt:
		return OpGt
	case OpLte:
		return OpGte
	case OpGt:
		return OpLt
	case OpGte:
		return OpLte
	default:
		return o
	}
}

// UnaryOp enumerates the unary operators an expression node can use.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

func (o UnaryOp) String() string {
	if o == OpNot {
		return "not"
	}
	return "-"
}

// Expr is a node in a refinement constraint tree. Every node knows its
// own static Kind; Eval requires bindings for every FieldRef reachable
// from the node.
type Expr interface {
	Kind() Kind
	Eval(bindings map[string]interface{}) (interface{}, error)
	String() string
}

// NumberLit is a numeric constant.
type NumberLit struct{ Value float64 }

func (n *NumberLit) Kind() Kind { return KindNumber }
func (n *NumberLit) Eval(map[string]interface{}) (interface{}, error) {
	return n.Value, nil
}
func (n *NumberLit) String() string { return fmt.Sprintf("%g", n.Value) }

// BoolLit is a boolean constant.
type BoolLit struct{ Value bool }

func (b *BoolLit) Kind() Kind { return KindBoolean }
func (b *BoolLit) Eval(map[string]interface{}) (interface{}, error) {
	return b.Value, nil
}
func (b *BoolLit) String() string { return fmt.Sprintf("%t", b.Value) }

// TextLit is a string constant.
type TextLit struct{ Value string }

func (t *TextLit) Kind() Kind { return KindText }
func (t *TextLit) Eval(map[string]interface{}) (interface{}, error) {
	return t.Value, nil
}
func (t *TextLit) String() string { return fmt.Sprintf("%q", t.Value) }

// FieldRef names a field of the record being evaluated.
type FieldRef struct {
	Name      string
	FieldKind Kind
}

func (f *FieldRef) Kind() Kind { return f.FieldKind }
func (f *FieldRef) Eval(bindings map[string]interface{}) (interface{}, error) {
	v, ok := bindings[f.Name]
	if !ok {
		return nil, fmt.Errorf("refinement: no binding for field %q", f.Name)
	}
	return v, nil
}
func (f *FieldRef) String() string { return f.Name }

// BinaryExpr combines two subexpressions with a BinaryOp.
type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

func (b *BinaryExpr) Kind() Kind {
	if b.Op.isArithmetic() {
		return KindNumber
	}
	return KindBoolean
}

func (b *BinaryExpr) Eval(bindings map[string]interface{}) (interface{}, error) {
	lv, err := b.Left.Eval(bindings)
	if err != nil {
		return nil, err
	}
	rv, err := b.Right.Eval(bindings)
	if err != nil {
		return nil, err
	}
	return evalBinary(b.Op, lv, rv)
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op.String(), b.Right.String())
}

// UnaryExpr applies a UnaryOp to a subexpression.
type UnaryExpr struct {
	Op   UnaryOp
	Expr Expr
}

func (u *UnaryExpr) Kind() Kind {
	if u.Op == OpNot {
		return KindBoolean
	}
	return KindNumber
}

func (u *UnaryExpr) Eval(bindings map[string]interface{}) (interface{}, error) {
	v, err := u.Expr.Eval(bindings)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case OpNot:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("refinement: not expects boolean operand, got %T", v)
		}
		return !b, nil
	case OpNeg:
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("refinement: negation expects numeric operand, got %T", v)
		}
		return -n, nil
	default:
		return nil, fmt.Errorf("refinement: unknown unary operator")
	}
}

func (u *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", u.Op.String(), u.Expr.String())
}

func evalBinary(op BinaryOp, lv, rv interface{}) (interface{}, error) {
	if op.isLogical() {
		lb, lok := lv.(bool)
		rb, rok := rv.(bool)
		if !lok || !rok {
			return nil, fmt.Errorf("refinement: %s expects boolean operands", op)
		}
		if op == OpAnd {
			return lb && rb, nil
		}
		return lb || rb, nil
	}

	ln, lok := lv.(float64)
	rn, rok := rv.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("refinement: %s expects numeric operands, got %T and %T", op, lv, rv)
	}

	switch op {
	case OpAdd:
		return ln + rn, nil
	case OpSub:
		return ln - rn, nil
	case OpMul:
		return ln * rn, nil
	case OpDiv:
		if rn == 0 {
			return nil, fmt.Errorf("refinement: division by zero")
		}
		return ln / rn, nil
	case OpEq:
		return ln == rn, nil
	case OpNeq:
		return ln != rn, nil
	case OpLt:
		return ln < rn, nil
	case OpLte:
		return ln <= rn, nil
	case OpGt:
		return ln > rn, nil
	case OpGte:
		return ln >= rn, nil
	default:
		return nil, fmt.Errorf("refinement: unknown binary operator")
	}
}
