package crdt

// OperationType discriminates the operations that can be applied to a
// CRDT model. Not every type is meaningful for every model: Count only
// accepts OpIncrement/OpMultiIncrement, Singleton accepts OpSet/OpRemove
// and Collection accepts OpAdd/OpRemove.
type OperationType int

const (
	OpIncrement OperationType = iota
	OpMultiIncrement
	OpAdd
	OpRemove
	OpSet
)

func (t OperationType) String() string {
	switch t {
	case OpIncrement:
		return "increment"
	case OpMultiIncrement:
		return "multi_increment"
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpSet:
		return "set"
	default:
		return "unknown"
	}
}

// Operation is the wire-level representation of a mutation against a
// CRDT model. Fields not relevant to a given Type/model combination are
// left at their zero value; JSON tags mirror the shape operations take
// when they cross a Driver boundary (§6 of the spec).
type Operation struct {
	Type  OperationType `json:"type"`
	Actor Actor         `json:"actor"`

	// Count fields.
	From  uint64 `json:"from,omitempty"`
	To    uint64 `json:"to,omitempty"`
	Value uint64 `json:"value,omitempty"`

	// Singleton/Collection fields.
	Clock   VersionVector `json:"clock,omitempty"`
	ID      string        `json:"id,omitempty"`
	Payload interface{}   `json:"payload,omitempty"`

	// Entity fields: the field an op targets, when the model is an Entity.
	Field string `json:"field,omitempty"`
}

// Delta is the two-sided result of merging two replicas: ModelChange is
// the list of operations that, applied to the pre-merge "this" replica,
// yields the merged state; OtherChange is the list that, applied to the
// pre-merge "other" replica, yields the same merged state. After both
// sides exchange and apply their half of the delta, the two replicas
// are byte-equal.
type Delta struct {
	ModelChange []Operation
	OtherChange []Operation
}

// Model is the capability every concrete CRDT implements. Concrete
// types are variants, not subclasses: there is no shared base struct,
// only this interface and free composition.
type Model interface {
	// ApplyOperation applies a local or remote operation. It returns
	// false (not an error) when the operation does not connect to the
	// model's current version — the caller's responsibility is to
	// re-request a sync, per the OutOfOrderOp error kind.
	ApplyOperation(op Operation) (bool, error)

	// Merge reconciles other into the receiver in place and returns the
	// two-sided delta described on Delta. Returns a *DivergenceError if
	// the two replicas cannot be reconciled.
	Merge(other Model) (*Delta, error)

	// GetData returns the full internal CRDT representation (values and
	// version bookkeeping), suitable for serialization to a driver.
	GetData() interface{}

	// GetParticleView returns the particle-visible projection: a plain
	// value for Count/Singleton, a slice for Collection.
	GetParticleView() interface{}

	// Clone returns a deep, independent copy.
	Clone() Model
}
