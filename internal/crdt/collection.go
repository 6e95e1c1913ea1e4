package crdt

// collectionEntry is one live element of a Collection.
type collectionEntry struct {
	Value interface{}
	Clock VersionVector
}

// Collection is an observed-remove set: an add survives a concurrent
// remove unless the remove's clock dominates the add's clock (i.e. the
// remover had already observed that exact add). This is the
// "add-wins" variant — the one spec.md's Collection relies on for
// handle semantics, since a particle that adds an element concurrently
// with another particle removing a different, older instance of the
// same id should keep seeing its own add.
type Collection struct {
	live       map[string]collectionEntry
	tombstones map[string]VersionVector
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{
		live:       make(map[string]collectionEntry),
		tombstones: make(map[string]VersionVector),
	}
}

// Add inserts value under id tagged with clock. It fails only if a
// tombstone for id already dominates clock (the element was already
// observed-removed as of this write).
func (c *Collection) Add(id string, value interface{}, clock VersionVector) (bool, error) {
	if tomb, ok := c.tombstones[id]; ok && tomb.Dominates(clock) {
		return false, nil
	}
	if existing, ok := c.live[id]; ok {
		c.live[id] = collectionEntry{Value: value, Clock: existing.Clock.Merge(clock)}
		return true, nil
	}
	c.live[id] = collectionEntry{Value: value, Clock: clock.Clone()}
	return true, nil
}

// Remove tombstones id as of clock. It fails if id is neither live nor
// tombstoned, or if id is live and clock does not dominate its clock;
// an existing tombstone is merged into the new one.
func (c *Collection) Remove(id string, clock VersionVector) (bool, error) {
	entry, live := c.live[id]
	tomb, tombstoned := c.tombstones[id]

	if !live && !tombstoned {
		return false, nil
	}
	if live && !clock.Dominates(entry.Clock) {
		return false, nil
	}

	if tombstoned {
		clock = clock.Merge(tomb)
	}
	c.tombstones[id] = clock.Clone()
	delete(c.live, id)
	return true, nil
}

// ApplyOperation implements Model.
func (c *Collection) ApplyOperation(op Operation) (bool, error) {
	switch op.Type {
	case OpAdd:
		return c.Add(op.ID, op.Payload, op.Clock)
	case OpRemove:
		return c.Remove(op.ID, op.Clock)
	default:
		return false, newSchemaViolation("collection: unsupported operation type %s", op.Type)
	}
}

// Merge implements Model.
func (c *Collection) Merge(other Model) (*Delta, error) {
	o, ok := other.(*Collection)
	if !ok {
		return nil, newSchemaViolation("collection: cannot merge with %T", other)
	}

	delta := &Delta{}

	// Tombstones: union, keeping the dominant clock per id.
	allTombIDs := make(map[string]struct{}, len(c.tombstones)+len(o.tombstones))
	for id := range c.tombstones {
		allTombIDs[id] = struct{}{}
	}
	for id := range o.tombstones {
		allTombIDs[id] = struct{}{}
	}
	for id := range allTombIDs {
		tc, tok := c.tombstones[id]
		oc, ook := o.tombstones[id]
		switch {
		case tok && ook:
			c.tombstones[id] = tc.Merge(oc)
		case ook && !tok:
			c.tombstones[id] = oc.Clone()
			delta.ModelChange = append(delta.ModelChange, Operation{Type: OpRemove, ID: id, Clock: oc.Clone()})
		case tok && !ook:
			delta.OtherChange = append(delta.OtherChange, Operation{Type: OpRemove, ID: id, Clock: tc.Clone()})
		}
	}

	// Live entries: union, applying observed-remove against the merged
	// tombstone set computed above.
	allLiveIDs := make(map[string]struct{}, len(c.live)+len(o.live))
	for id := range c.live {
		allLiveIDs[id] = struct{}{}
	}
	for id := range o.live {
		allLiveIDs[id] = struct{}{}
	}

	for id := range allLiveIDs {
		te, tok := c.live[id]
		oe, ook := o.live[id]
		tomb, tombstoned := c.tombstones[id]

		switch {
		case tok && ook:
			merged := te.Clock.Merge(oe.Clock)
			if tombstoned && tomb.Dominates(merged) {
				delete(c.live, id)
				continue
			}
			c.live[id] = collectionEntry{Value: te.Value, Clock: merged}

		case tok && !ook:
			if tombstoned && tomb.Dominates(te.Clock) {
				delete(c.live, id)
				continue
			}
			delta.OtherChange = append(delta.OtherChange, Operation{Type: OpAdd, ID: id, Payload: te.Value, Clock: te.Clock.Clone()})

		case ook && !tok:
			if tombstoned && tomb.Dominates(oe.Clock) {
				continue
			}
			c.live[id] = collectionEntry{Value: oe.Value, Clock: oe.Clock.Clone()}
			delta.ModelChange = append(delta.ModelChange, Operation{Type: OpAdd, ID: id, Payload: oe.Value, Clock: oe.Clock.Clone()})
		}
	}

	return delta, nil
}

// GetData implements Model.
func (c *Collection) GetData() interface{} {
	live := make(map[string]collectionEntry, len(c.live))
	for id, e := range c.live {
		live[id] = e
	}
	tombs := make(map[string]VersionVector, len(c.tombstones))
	for id, v := range c.tombstones {
		tombs[id] = v.Clone()
	}
	return struct {
		Live       map[string]collectionEntry
		Tombstones map[string]VersionVector
	}{live, tombs}
}

// GetParticleView implements Model: the live values, in no particular
// order (callers that need determinism sort by id themselves).
func (c *Collection) GetParticleView() interface{} {
	out := make([]interface{}, 0, len(c.live))
	for _, e := range c.live {
		out = append(out, e.Value)
	}
	return out
}

// IDs returns the ids of currently live elements.
func (c *Collection) IDs() []string {
	out := make([]string, 0, len(c.live))
	for id := range c.live {
		out = append(out, id)
	}
	return out
}

// Clone implements Model.
func (c *Collection) Clone() Model {
	out := NewCollection()
	for id, e := range c.live {
		out.live[id] = collectionEntry{Value: e.Value, Clock: e.Clock.Clone()}
	}
	for id, v := range c.tombstones {
		out.tombstones[id] = v.Clone()
	}
	return out
}
