package crdt

// Count is a grow-only replicated counter. Each actor owns a disjoint
// slice of the total: its own cumulative contribution (values[actor])
// and the sequence position of its most recent successful operation
// (version[actor]). The particle-visible value is the sum of every
// actor's contribution.
//
// version is not a count of operations; it is a per-actor sequence
// number chosen by the operation's author (the "to" of a
// MultiIncrement). It only has to be strictly increasing within one
// actor's own stream — that's what lets applyOperation detect
// out-of-order delivery without a full causal history.
type Count struct {
	values  map[Actor]uint64
	version map[Actor]uint64
}

// NewCount returns an empty Count.
func NewCount() *Count {
	return &Count{
		values:  make(map[Actor]uint64),
		version: make(map[Actor]uint64),
	}
}

// Increment is shorthand for MultiIncrement(actor, from, from+1, 1).
func (c *Count) Increment(actor Actor, from uint64) (bool, error) {
	return c.MultiIncrement(actor, from, from+1, 1)
}

// MultiIncrement applies a single actor's increment of value, moving
// its sequence position from "from" to "to". It succeeds only if the
// operation connects to the actor's current position (from ==
// version[actor]) and makes forward progress (to > from, value > 0).
// A disconnected or degenerate operation returns (false, nil): the
// caller should treat this as "needs resync", not a hard error.
func (c *Count) MultiIncrement(actor Actor, from, to, value uint64) (bool, error) {
	if value == 0 || to <= from {
		return false, nil
	}
	if c.version[actor] != from {
		return false, nil
	}
	c.values[actor] += value
	c.version[actor] = to
	return true, nil
}

// ApplyOperation implements Model.
func (c *Count) ApplyOperation(op Operation) (bool, error) {
	switch op.Type {
	case OpIncrement:
		return c.Increment(op.Actor, op.From)
	case OpMultiIncrement:
		return c.MultiIncrement(op.Actor, op.From, op.To, op.Value)
	default:
		return false, newSchemaViolation("count: unsupported operation type %s", op.Type)
	}
}

// Merge implements Model. It reconciles other into c in place and
// returns the delta needed to bring each pre-merge replica to the
// merged state.
func (c *Count) Merge(other Model) (*Delta, error) {
	o, ok := other.(*Count)
	if !ok {
		return nil, newSchemaViolation("count: cannot merge with %T", other)
	}

	delta := &Delta{}
	actors := make(map[Actor]struct{}, len(c.values)+len(o.values))
	for a := range c.values {
		actors[a] = struct{}{}
	}
	for a := range o.values {
		actors[a] = struct{}{}
	}

	for actor := range actors {
		tv, tver := c.values[actor], c.version[actor]
		ov, over := o.values[actor], o.version[actor]

		switch {
		case tv == ov && tver == over:
			// Already agree; nothing to exchange.

		case tv > ov:
			if tver <= over {
				return nil, newDivergence(actor, "local value %d > remote %d but local version %d <= remote version %d", tv, ov, tver, over)
			}
			delta.OtherChange = append(delta.OtherChange, Operation{
				Type: OpMultiIncrement, Actor: actor,
				From: over, To: tver, Value: tv - ov,
			})

		case ov > tv:
			if over <= tver {
				return nil, newDivergence(actor, "remote value %d > local %d but remote version %d <= local version %d", ov, tv, over, tver)
			}
			c.values[actor] = ov
			c.version[actor] = over
			delta.ModelChange = append(delta.ModelChange, Operation{
				Type: OpMultiIncrement, Actor: actor,
				From: tver, To: over, Value: ov - tv,
			})

		default:
			// tv == ov but tver != over: the same total reached via
			// different operation histories. Neither replica's history
			// can be declared authoritative, so this is irreconcilable.
			return nil, newDivergence(actor, "equal value %d reached at differing versions %d vs %d", tv, tver, over)
		}
	}

	return delta, nil
}

// GetData implements Model.
func (c *Count) GetData() interface{} {
	values := make(map[Actor]uint64, len(c.values))
	for a, v := range c.values {
		values[a] = v
	}
	version := make(map[Actor]uint64, len(c.version))
	for a, v := range c.version {
		version[a] = v
	}
	return struct {
		Values  map[Actor]uint64
		Version map[Actor]uint64
	}{values, version}
}

// GetParticleView implements Model: the sum across every actor.
func (c *Count) GetParticleView() interface{} {
	var total uint64
	for _, v := range c.values {
		total += v
	}
	return total
}

// Value is a typed convenience wrapper around GetParticleView.
func (c *Count) Value() uint64 {
	return c.GetParticleView().(uint64)
}

// Clone implements Model.
func (c *Count) Clone() Model {
	out := NewCount()
	for a, v := range c.values {
		out.values[a] = v
	}
	for a, v := range c.version {
		out.version[a] = v
	}
	return out
}
