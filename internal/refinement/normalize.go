package refinement

// Normalize rewrites expr into a canonical form: constants are folded,
// comparisons are rewritten so a FieldRef appears on the left when one
// side is a literal, and boolean identities (x && true, x || false,
// !!x) are collapsed. It does not change what expr evaluates to for
// any binding.
func Normalize(expr Expr) Expr {
	switch e := expr.(type) {
	case *BinaryExpr:
		return normalizeBinary(e)
	case *UnaryExpr:
		return normalizeUnary(e)
	default:
		return expr
	}
}

func normalizeUnary(e *UnaryExpr) Expr {
	inner := Normalize(e.Expr)

	if e.Op == OpNot {
		if b, ok := inner.(*BoolLit); ok {
			return &BoolLit{Value: !b.Value}
		}
		if nested, ok := inner.(*UnaryExpr); ok && nested.Op == OpNot {
			return nested.Expr
		}
	}
	if e.Op == OpNeg {
		if n, ok := inner.(*NumberLit); ok {
			return &NumberLit{Value: -n.Value}
		}
	}
	return &UnaryExpr{Op: e.Op, Expr: inner}
}

func normalizeBinary(e *BinaryExpr) Expr {
	left := Normalize(e.Left)
	right := Normalize(e.Right)
	op := e.Op

	// Canonicalize comparisons so a literal on the left is swapped to
	// the right: age >= 18 stays as-is, but 18 <= age becomes age >= 18.
	if op.isComparison() {
		if isLiteral(left) && !isLiteral(right) {
			left, right, op = right, left, op.flip()
		}
	}

	if lit, ok := foldConstant(op, left, right); ok {
		return lit
	}

	if folded := applyIdentities(op, left, right); folded != nil {
		return folded
	}

	return &BinaryExpr{Op: op, Left: left, Right: right}
}

func isLiteral(e Expr) bool {
	switch e.(type) {
	case *NumberLit, *BoolLit, *TextLit:
		return true
	default:
		return false
	}
}

func foldConstant(op BinaryOp, left, right Expr) (Expr, bool) {
	if !isLiteral(left) || !isLiteral(right) {
		return nil, false
	}
	lv, err := left.Eval(nil)
	if err != nil {
		return nil, false
	}
	rv, err := right.Eval(nil)
	if err != nil {
		return nil, false
	}
	v, err := evalBinary(op, lv, rv)
	if err != nil {
		return nil, false
	}
	switch res := v.(type) {
	case bool:
		return &BoolLit{Value: res}, true
	case float64:
		return &NumberLit{Value: res}, true
	default:
		return nil, false
	}
}

// applyIdentities collapses logical identities that constant-folding
// alone can't reach because one side is not a literal: x && true == x,
// x || false == x, x && false == false, x || true == true.
func applyIdentities(op BinaryOp, left, right Expr) Expr {
	if op != OpAnd && op != OpOr {
		return nil
	}

	reduce := func(nonLit Expr, lit *BoolLit) Expr {
		switch {
		case op == OpAnd && lit.Value:
			return nonLit
		case op == OpAnd && !lit.Value:
			return &BoolLit{Value: false}
		case op == OpOr && lit.Value:
			return &BoolLit{Value: true}
		case op == OpOr && !lit.Value:
			return nonLit
		}
		return nil
	}

	if lit, ok := right.(*BoolLit); ok {
		return reduce(left, lit)
	}
	if lit, ok := left.(*BoolLit); ok {
		return reduce(right, lit)
	}
	return nil
}
