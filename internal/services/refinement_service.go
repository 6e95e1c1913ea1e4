package services

import (
	"fmt"

	"go.uber.org/zap"

	arcserrors "github.com/arcs-project/arcs-core/internal/errors"
	"github.com/arcs-project/arcs-core/internal/dto"
	"github.com/arcs-project/arcs-core/internal/refinement"
)

// RefinementService builds refinement.Expr trees from the DTO shape a
// REST client submits and evaluates them against a record. Refinement
// expressions have no text grammar in this codebase, so this is the
// transport deserializer the package itself expects callers to supply.
type RefinementService struct {
	logger *zap.Logger
}

func NewRefinementService(logger *zap.Logger) *RefinementService {
	return &RefinementService{logger: logger.Named("refinement_service")}
}

// Validate reports whether record satisfies every constraint, wrapping
// the first build or evaluation failure as an InvalidRecipe-adjacent
// RefinementInvalid error.
func (svc *RefinementService) Validate(record map[string]interface{}, constraints []dto.RefinementConstraint) error {
	built := make([]refinement.Constraint, len(constraints))
	for i, c := range constraints {
		expr, err := buildExpr(c.Expr)
		if err != nil {
			return arcserrors.NewRefinementInvalidError(fmt.Sprintf("field %q: %v", c.Field, err))
		}
		built[i] = refinement.Constraint{Field: c.Field, Expr: expr}
	}
	return refinement.ValidateData(record, built)
}

func buildExpr(n *dto.ExprNode) (refinement.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("nil expression node")
	}

	switch n.Kind {
	case "number":
		v, ok := toFloat(n.Value)
		if !ok {
			return nil, fmt.Errorf("number node requires a numeric value, got %T", n.Value)
		}
		return &refinement.NumberLit{Value: v}, nil

	case "bool":
		v, ok := n.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("bool node requires a boolean value, got %T", n.Value)
		}
		return &refinement.BoolLit{Value: v}, nil

	case "text":
		v, ok := n.Value.(string)
		if !ok {
			return nil, fmt.Errorf("text node requires a string value, got %T", n.Value)
		}
		return &refinement.TextLit{Value: v}, nil

	case "field":
		kind, err := parseKind(n.FieldKind)
		if err != nil {
			return nil, err
		}
		return &refinement.FieldRef{Name: n.Name, FieldKind: kind}, nil

	case "binary":
		op, err := parseBinaryOp(n.Op)
		if err != nil {
			return nil, err
		}
		left, err := buildExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := buildExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &refinement.BinaryExpr{Op: op, Left: left, Right: right}, nil

	case "unary":
		op, err := parseUnaryOp(n.Op)
		if err != nil {
			return nil, err
		}
		operand, err := buildExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		return &refinement.UnaryExpr{Op: op, Expr: operand}, nil

	default:
		return nil, fmt.Errorf("unknown expression kind %q", n.Kind)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func parseKind(s string) (refinement.Kind, error) {
	switch s {
	case "number":
		return refinement.KindNumber, nil
	case "boolean":
		return refinement.KindBoolean, nil
	case "text":
		return refinement.KindText, nil
	default:
		return 0, fmt.Errorf("unknown field kind %q", s)
	}
}

func parseBinaryOp(s string) (refinement.BinaryOp, error) {
	switch s {
	case "and":
		return refinement.OpAnd, nil
	case "or":
		return refinement.OpOr, nil
	case "+":
		return refinement.OpAdd, nil
	case "-":
		return refinement.OpSub, nil
	case "*":
		return refinement.OpMul, nil
	case "/":
		return refinement.OpDiv, nil
	case "==":
		return refinement.OpEq, nil
	case "!=":
		return refinement.OpNeq, nil
	case "<":
		return refinement.OpLt, nil
	case "<=":
		return refinement.OpLte, nil
	case ">":
		return refinement.OpGt, nil
	case ">=":
		return refinement.OpGte, nil
	default:
		return 0, fmt.Errorf("unknown binary operator %q", s)
	}
}

func parseUnaryOp(s string) (refinement.UnaryOp, error) {
	switch s {
	case "not":
		return refinement.OpNot, nil
	case "-":
		return refinement.OpNeg, nil
	default:
		return 0, fmt.Errorf("unknown unary operator %q", s)
	}
}
