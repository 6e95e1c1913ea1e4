package crdt

// singletonEntry is one candidate value for a Singleton, tagged with
// the version vector in effect when it was written.
type singletonEntry struct {
	ID    string
	Value interface{}
	Clock VersionVector
}

// Singleton holds at most one particle-visible value at a time. Writes
// are tagged with a version vector; a write only takes effect locally
// if its clock is at least as advanced as whatever it replaces. Two
// replicas that wrote concurrently (neither clock dominates the other)
// are resolved deterministically by entry ID so every replica
// converges on the same winner, and the losing write's causal
// information is folded into the winner's clock so it isn't
// rediscovered as "new" on a later merge.
type Singleton struct {
	current *singletonEntry
}

// NewSingleton returns an empty Singleton.
func NewSingleton() *Singleton {
	return &Singleton{}
}

// Set writes value under id, tagged with clock. It succeeds if there is
// no current value, or if clock dominates the current entry's clock.
func (s *Singleton) Set(id string, value interface{}, clock VersionVector) (bool, error) {
	if s.current != nil && !clock.Dominates(s.current.Clock) {
		return false, nil
	}
	s.current = &singletonEntry{ID: id, Value: value, Clock: clock.Clone()}
	return true, nil
}

// Clear removes the current value, provided clock dominates it.
func (s *Singleton) Clear(clock VersionVector) (bool, error) {
	if s.current == nil {
		return true, nil
	}
	if !clock.Dominates(s.current.Clock) {
		return false, nil
	}
	s.current = nil
	return true, nil
}

// ApplyOperation implements Model.
func (s *Singleton) ApplyOperation(op Operation) (bool, error) {
	switch op.Type {
	case OpSet:
		return s.Set(op.ID, op.Payload, op.Clock)
	case OpRemove:
		return s.Clear(op.Clock)
	default:
		return false, newSchemaViolation("singleton: unsupported operation type %s", op.Type)
	}
}

// Merge implements Model.
func (s *Singleton) Merge(other Model) (*Delta, error) {
	o, ok := other.(*Singleton)
	if !ok {
		return nil, newSchemaViolation("singleton: cannot merge with %T", other)
	}

	delta := &Delta{}

	switch {
	case s.current == nil && o.current == nil:
		// Both empty; nothing to do.

	case s.current == nil:
		s.current = &singletonEntry{ID: o.current.ID, Value: o.current.Value, Clock: o.current.Clock.Clone()}
		delta.ModelChange = append(delta.ModelChange, setOp(o.current))

	case o.current == nil:
		delta.OtherChange = append(delta.OtherChange, setOp(s.current))

	case s.current.ID == o.current.ID:
		// Same write observed by both sides; just align clocks.
		merged := s.current.Clock.Merge(o.current.Clock)
		s.current.Clock = merged

	case s.current.Clock.Dominates(o.current.Clock):
		delta.OtherChange = append(delta.OtherChange, setOp(s.current))
		s.current.Clock = s.current.Clock.Merge(o.current.Clock)

	case o.current.Clock.Dominates(s.current.Clock):
		s.current = &singletonEntry{ID: o.current.ID, Value: o.current.Value, Clock: o.current.Clock.Merge(s.current.Clock)}
		delta.ModelChange = append(delta.ModelChange, setOp(s.current))

	default:
		// Concurrent writes: break the tie deterministically by ID so
		// every replica picks the same winner.
		winner := s.current
		if o.current.ID > s.current.ID {
			winner = o.current
		}
		merged := s.current.Clock.Merge(o.current.Clock)
		s.current = &singletonEntry{ID: winner.ID, Value: winner.Value, Clock: merged}
		delta.ModelChange = append(delta.ModelChange, setOp(s.current))
		delta.OtherChange = append(delta.OtherChange, setOp(s.current))
	}

	return delta, nil
}

func setOp(e *singletonEntry) Operation {
	return Operation{Type: OpSet, ID: e.ID, Payload: e.Value, Clock: e.Clock.Clone()}
}

// GetData implements Model.
func (s *Singleton) GetData() interface{} {
	if s.current == nil {
		return nil
	}
	return *s.current
}

// GetParticleView implements Model: the current value, or nil if empty.
func (s *Singleton) GetParticleView() interface{} {
	if s.current == nil {
		return nil
	}
	return s.current.Value
}

// Clone implements Model.
func (s *Singleton) Clone() Model {
	out := NewSingleton()
	if s.current != nil {
		out.current = &singletonEntry{ID: s.current.ID, Value: s.current.Value, Clock: s.current.Clock.Clone()}
	}
	return out
}
