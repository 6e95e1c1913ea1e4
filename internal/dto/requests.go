// Package dto holds the request/response shapes the REST and gRPC
// transports marshal at their boundary, kept distinct from the
// internal wire.ProxyMessage union so the transport surface can evolve
// independently of the store's internal message shape.
package dto

import (
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/recipe"
)

// BaseRequest contains fields common to every request.
type BaseRequest struct {
	RequestID string `json:"request_id,omitempty" validate:"omitempty,uuid"`
}

// PostOperationsRequest carries a batch of operations a proxy wants
// applied to the entity identified by ID.
type PostOperationsRequest struct {
	BaseRequest
	ID         string           `json:"id" validate:"required,alphanum_underscore"`
	Operations []crdt.Operation `json:"operations" validate:"required,min=1,dive"`
}

// SyncRequest asks the store to resend the full current container
// state. SubscriptionID, when set, excludes that subscriber from the
// resulting broadcast since it already has what it asked for.
type SyncRequest struct {
	BaseRequest
	SubscriptionID int `json:"subscription_id,omitempty" validate:"omitempty,min=0"`
}

// SubscribeRequest opens a model-update subscription. BufferSize is
// validated but not used: every subscription gets a 32-message buffer.
type SubscribeRequest struct {
	BufferSize int `json:"buffer_size" validate:"omitempty,min=1,max=4096"`
}

// RecipeValidateRequest carries a recipe graph for structural
// validation without normalizing it. There is no textual recipe DSL in
// this module, so clients build the graph directly (as JSON matching
// recipe.Recipe's field layout) rather than submitting source text to
// parse.
type RecipeValidateRequest struct {
	BaseRequest
	Recipe *recipe.Recipe `json:"recipe" validate:"required"`
}

// RecipeNormalizeRequest carries a recipe graph to be normalized and
// returned in its canonical form plus digest.
type RecipeNormalizeRequest struct {
	BaseRequest
	Recipe *recipe.Recipe `json:"recipe" validate:"required"`
}

// RefinementValidateRequest asks whether record satisfies a set of
// field constraints, each given as a JSON expression tree rather than
// source text: refinement.Expr is built programmatically, not parsed,
// so the transport boundary is where that tree gets deserialized.
type RefinementValidateRequest struct {
	BaseRequest
	Record      map[string]interface{} `json:"record" validate:"required"`
	Constraints []RefinementConstraint  `json:"constraints" validate:"required,min=1,dive"`
}

// RefinementConstraint pairs a field name with the expression tree it
// must satisfy.
type RefinementConstraint struct {
	Field string    `json:"field" validate:"required"`
	Expr  *ExprNode `json:"expr" validate:"required"`
}

// ExprNode is a JSON-tagged union mirroring refinement.Expr's concrete
// node types. Kind selects which fields are populated:
//   - "number", "bool", "text": Value holds the literal.
//   - "field": Name holds the field reference, FieldKind its static kind
//     ("number", "boolean" or "text").
//   - "binary": Op, Left and Right are populated.
//   - "unary": Op and Operand are populated.
type ExprNode struct {
	Kind      string      `json:"kind" validate:"required,oneof=number bool text field binary unary"`
	Value     interface{} `json:"value,omitempty"`
	Name      string      `json:"name,omitempty"`
	FieldKind string      `json:"field_kind,omitempty"`
	Op        string      `json:"op,omitempty"`
	Left      *ExprNode   `json:"left,omitempty"`
	Right     *ExprNode   `json:"right,omitempty"`
	Operand   *ExprNode   `json:"operand,omitempty"`
}
