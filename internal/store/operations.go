package store

import (
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// OperationPipeline translates an incoming Operations message's entity
// mutations into backing-store CRDT operations, and mints a companion
// container Reference for every batch in which some op took effect. It
// holds no state of its own — state lives in the ReferenceModeStore —
// so it can be exercised directly from tests.
type OperationPipeline struct {
	backingKey wire.StorageKey
}

// NewOperationPipeline returns a pipeline that mints References
// pointing at backingKey.
func NewOperationPipeline(backingKey wire.StorageKey) *OperationPipeline {
	return &OperationPipeline{backingKey: backingKey}
}

// Apply applies ops to entity (creating it via newEntity if it is nil)
// and returns the updated entity, the subset of ops that actually took
// effect, and — if any op took effect — the container operation that
// should be applied to the container store to refresh its Reference.
// A Reference is minted on every successful batch, not just an id's
// first observation, so the container's view of an entity's version
// never lags its true backing VV.
func (p *OperationPipeline) Apply(id string, entity *crdt.Entity, newEntity func() *crdt.Entity, ops []crdt.Operation, clock crdt.VersionVector) (*crdt.Entity, []crdt.Operation, *crdt.Operation, error) {
	if entity == nil {
		entity = newEntity()
	}

	applied := make([]crdt.Operation, 0, len(ops))
	for _, op := range ops {
		ok, err := entity.ApplyOperation(op)
		if err != nil {
			return entity, applied, nil, err
		}
		if ok {
			applied = append(applied, op)
		}
	}

	var containerOp *crdt.Operation
	if len(applied) > 0 {
		ref := wire.Reference{ID: id, StorageKey: p.backingKey, Version: clock.Clone()}
		containerOp = &crdt.Operation{Type: crdt.OpAdd, ID: id, Payload: ref, Clock: clock.Clone()}
	}

	return entity, applied, containerOp, nil
}
