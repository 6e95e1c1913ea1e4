package recipe

import (
	"sort"

	"github.com/arcs-project/arcs-core/internal/errors"
)

// compareComparables orders two handle-connections belonging to r.
// Interface-typed connections sort last regardless of handle id, and
// within each group connections are ordered by the ID of the handle
// they point at, then by connection name. The grouping means
// resolver strategies see every concretely-typed connection before
// any interface placeholder.
func compareComparables(r *Recipe, a, b *HandleConnection) bool {
	if a.IsInterface != b.IsInterface {
		return !a.IsInterface
	}
	ah, bh := r.Handles[a.HandleIdx], r.Handles[b.HandleIdx]
	if ah.ID != bh.ID {
		return ah.ID < bh.ID
	}
	return a.Name < b.Name
}

func sortHandleConnections(r *Recipe, conns []*HandleConnection) {
	sort.SliceStable(conns, func(i, j int) bool {
		return compareComparables(r, conns[i], conns[j])
	})
}

func sortSlotConnections(r *Recipe, conns []*SlotConnection) {
	sort.SliceStable(conns, func(i, j int) bool {
		si, sj := r.Slots[conns[i].SlotIdx], r.Slots[conns[j].SlotIdx]
		if si.ProvidedByIdx != sj.ProvidedByIdx {
			// slots provided by an earlier particle sort first; an
			// unprovided slot (-1) sorts last.
			if si.ProvidedByIdx < 0 {
				return false
			}
			if sj.ProvidedByIdx < 0 {
				return true
			}
			return si.ProvidedByIdx < sj.ProvidedByIdx
		}
		return conns[i].Name < conns[j].Name
	})
}

// Normalize performs the deterministic canonicalization and freeze
// described for recipes: refuses on an already-frozen or invalid
// recipe (without mutating it), sorts every node's connections,
// reorders particles and handles by first appearance in that sorted
// view and slots by their providing particle, then by name, sorts
// verbs and patterns, and seals the recipe against
// further mutation.
func (r *Recipe) Normalize() error {
	if r.frozen {
		return errors.NewInvalidRecipeError("recipe is already frozen")
	}
	if !r.IsValid() {
		return errors.NewInvalidRecipeError("recipe is not valid")
	}

	// Phase 1 (start): per-particle connection/slot sort.
	for _, p := range r.Particles {
		sortHandleConnections(r, p.Connections)
		sortSlotConnections(r, p.ConsumedSlots)
	}

	r.reorderParticles()
	r.reorderHandles()
	r.reorderSlots()

	sort.Strings(r.Verbs)
	sort.Strings(r.Patterns)

	// Phase 2 (finish): nothing left to converge once arenas are
	// reindexed; present for symmetry with the two-phase description
	// and as the hook future node kinds' finish-phase work would use.

	r.frozen = true
	return nil
}

// reorderParticles sorts r.Particles by first appearance of one of
// their connections in the globally sorted connection list, appending
// connection-less orphan particles ordered by (SpecName, Name).
func (r *Recipe) reorderParticles() {
	type connRef struct{ particleIdx, connIdx int }
	var all []connRef
	for pi, p := range r.Particles {
		for ci := range p.Connections {
			all = append(all, connRef{pi, ci})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		ci, cj := all[i], all[j]
		a := r.Particles[ci.particleIdx].Connections[ci.connIdx]
		b := r.Particles[cj.particleIdx].Connections[cj.connIdx]
		return compareComparables(r, a, b)
	})

	seen := make(map[int]bool, len(r.Particles))
	order := make([]int, 0, len(r.Particles))
	for _, cr := range all {
		if !seen[cr.particleIdx] {
			seen[cr.particleIdx] = true
			order = append(order, cr.particleIdx)
		}
	}

	var orphans []int
	for pi := range r.Particles {
		if !seen[pi] {
			orphans = append(orphans, pi)
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		pi, pj := r.Particles[orphans[i]], r.Particles[orphans[j]]
		if pi.SpecName != pj.SpecName {
			return pi.SpecName < pj.SpecName
		}
		return pi.Name < pj.Name
	})
	order = append(order, orphans...)

	oldToNew := make([]int, len(r.Particles))
	newParticles := make([]*Particle, len(order))
	for newIdx, oldIdx := range order {
		p := r.Particles[oldIdx]
		p.Index = newIdx
		newParticles[newIdx] = p
		oldToNew[oldIdx] = newIdx
	}
	r.Particles = newParticles

	for _, s := range r.Slots {
		if s.ProvidedByIdx >= 0 {
			s.ProvidedByIdx = oldToNew[s.ProvidedByIdx]
		}
	}
}

// reorderHandles sorts r.Handles by first appearance in the
// (already particle-reordered) connection list, appending
// unreferenced handles ordered by ID.
func (r *Recipe) reorderHandles() {
	seen := make(map[int]bool, len(r.Handles))
	order := make([]int, 0, len(r.Handles))
	for _, p := range r.Particles {
		for _, c := range p.Connections {
			if !seen[c.HandleIdx] {
				seen[c.HandleIdx] = true
				order = append(order, c.HandleIdx)
			}
		}
	}
	var orphans []int
	for hi := range r.Handles {
		if !seen[hi] {
			orphans = append(orphans, hi)
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		return r.Handles[orphans[i]].ID < r.Handles[orphans[j]].ID
	})
	order = append(order, orphans...)

	oldToNew := make([]int, len(r.Handles))
	newHandles := make([]*Handle, len(order))
	for newIdx, oldIdx := range order {
		h := r.Handles[oldIdx]
		h.Index = newIdx
		newHandles[newIdx] = h
		oldToNew[oldIdx] = newIdx
	}
	r.Handles = newHandles

	for _, p := range r.Particles {
		for _, c := range p.Connections {
			c.HandleIdx = oldToNew[c.HandleIdx]
		}
	}
}

// reorderSlots sorts r.Slots so a provided slot follows its producing
// particle's position, with unprovided slots sorted by name last.
func (r *Recipe) reorderSlots() {
	order := make([]int, len(r.Slots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		si, sj := r.Slots[order[i]], r.Slots[order[j]]
		if si.ProvidedByIdx != sj.ProvidedByIdx {
			if si.ProvidedByIdx < 0 {
				return false
			}
			if sj.ProvidedByIdx < 0 {
				return true
			}
			return si.ProvidedByIdx < sj.ProvidedByIdx
		}
		return si.Name < sj.Name
	})

	oldToNew := make([]int, len(r.Slots))
	newSlots := make([]*Slot, len(order))
	for newIdx, oldIdx := range order {
		s := r.Slots[oldIdx]
		s.Index = newIdx
		newSlots[newIdx] = s
		oldToNew[oldIdx] = newIdx
	}
	r.Slots = newSlots

	for _, p := range r.Particles {
		for _, sc := range p.ConsumedSlots {
			sc.SlotIdx = oldToNew[sc.SlotIdx]
		}
		for i, si := range p.ProvidedSlots {
			p.ProvidedSlots[i] = oldToNew[si]
		}
	}
}
