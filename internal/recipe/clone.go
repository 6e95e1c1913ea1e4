package recipe

// CloneMap records, for one clone/merge operation, the old-index to
// new-index mapping MergeInto assigns each node kind as it is copied
// into a target recipe's arenas.
type CloneMap struct {
	Handles   map[int]int
	Slots     map[int]int
	Particles map[int]int
}

func newCloneMap() *CloneMap {
	return &CloneMap{
		Handles:   make(map[int]int),
		Slots:     make(map[int]int),
		Particles: make(map[int]int),
	}
}

// MergeInto copies every node of r into target's arenas, returning the
// newly appended index ranges for particles, handles and slots. Nodes
// are copied value-wise; cross-arena references (a connection's
// HandleIdx, a slot's ProvidedByIdx) are rewritten through the
// returned CloneMap so they point at target's arena positions rather
// than r's.
func (r *Recipe) MergeInto(target *Recipe) (newParticles, newHandles, newSlots []int, cm *CloneMap) {
	cm = newCloneMap()

	// Handles have no cross-arena dependencies, copy first.
	for _, h := range r.Handles {
		nh := &Handle{
			ID:         h.ID,
			Type:       h.Type,
			Fate:       h.Fate,
			StorageKey: h.StorageKey,
			Immediate:  h.Immediate,
		}
		idx := target.AddHandle(nh)
		cm.Handles[h.Index] = idx
		newHandles = append(newHandles, idx)
	}

	// Particle skeletons next, so slots can resolve ProvidedByIdx.
	for _, p := range r.Particles {
		np := &Particle{Name: p.Name, SpecName: p.SpecName}
		idx := target.AddParticle(np)
		cm.Particles[p.Index] = idx
		newParticles = append(newParticles, idx)
	}

	for _, s := range r.Slots {
		ns := &Slot{Name: s.Name, ProvidedConn: s.ProvidedConn, ProvidedByIdx: -1}
		if s.ProvidedByIdx >= 0 {
			ns.ProvidedByIdx = cm.Particles[s.ProvidedByIdx]
		}
		idx := target.AddSlot(ns)
		cm.Slots[s.Index] = idx
		newSlots = append(newSlots, idx)
	}

	// Fill in particle bodies now that handles and slots have targets.
	for _, p := range r.Particles {
		np := target.Particles[cm.Particles[p.Index]]
		for _, c := range p.Connections {
			np.Connections = append(np.Connections, &HandleConnection{
				Name:        c.Name,
				HandleIdx:   cm.Handles[c.HandleIdx],
				Mode:        c.Mode,
				TypeTag:     c.TypeTag,
				IsInterface: c.IsInterface,
			})
		}
		for _, sc := range p.ConsumedSlots {
			np.ConsumedSlots = append(np.ConsumedSlots, &SlotConnection{
				Name:    sc.Name,
				SlotIdx: cm.Slots[sc.SlotIdx],
			})
		}
		for _, si := range p.ProvidedSlots {
			np.ProvidedSlots = append(np.ProvidedSlots, cm.Slots[si])
		}
	}

	for _, cc := range r.Constraints {
		dup := *cc
		target.Constraints = append(target.Constraints, &dup)
	}

	return newParticles, newHandles, newSlots, cm
}

// Clone returns a fresh, independent, unfrozen copy of r. Verbs,
// patterns and Search are copied by value.
func (r *Recipe) Clone() *Recipe {
	target := NewRecipe(r.Name)
	r.MergeInto(target)

	target.Verbs = append([]string(nil), r.Verbs...)
	target.Patterns = append([]string(nil), r.Patterns...)
	if r.Search != nil {
		s := *r.Search
		target.Search = &s
	}
	return target
}
