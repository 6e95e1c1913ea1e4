package refinement

import (
	"fmt"

	"github.com/arcs-project/arcs-core/internal/errors"
)

// Constraint pairs a field name with the boolean expression it must
// satisfy; the expression may reference other fields of the same
// record (e.g. "endDate >= startDate"), not just its own field.
type Constraint struct {
	Field string
	Expr  Expr
}

// ValidateData evaluates every constraint against record and returns a
// RefinementInvalid error naming the first constraint that fails or
// cannot be evaluated. Its caller is services.RefinementService
// (the REST refinement-validation endpoint); the reference-mode store
// does not call it when it ingests entities.
func ValidateData(record map[string]interface{}, constraints []Constraint) error {
	for _, c := range constraints {
		result, err := c.Expr.Eval(record)
		if err != nil {
			return errors.NewRefinementInvalidError(fmt.Sprintf("field %q: %v", c.Field, err))
		}
		ok, isBool := result.(bool)
		if !isBool {
			return errors.NewRefinementInvalidError(fmt.Sprintf("field %q: constraint did not evaluate to a boolean", c.Field))
		}
		if !ok {
			return errors.NewRefinementInvalidError(fmt.Sprintf("field %q failed constraint %s", c.Field, c.Expr.String()))
		}
	}
	return nil
}
