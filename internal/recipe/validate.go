package recipe

import "github.com/arcs-project/arcs-core/internal/errors"

// IsValid reports whether r is structurally sound: no duplicate
// handle or slot ids, every node's own validity holds, and every
// handle-connection/slot-connection resolves to a real arena index.
// IsValid never mutates r and is safe to call on a mutable or frozen
// recipe.
func (r *Recipe) IsValid() bool {
	seenHandles := make(map[string]bool, len(r.Handles))
	for _, h := range r.Handles {
		if h.ID != "" {
			if seenHandles[h.ID] {
				return false
			}
			seenHandles[h.ID] = true
		}
		if !h.isValid() {
			return false
		}
	}

	seenSlots := make(map[string]bool, len(r.Slots))
	for _, s := range r.Slots {
		if s.Name != "" {
			if seenSlots[s.Name] {
				return false
			}
			seenSlots[s.Name] = true
		}
		if !s.isValid() {
			return false
		}
		if s.ProvidedByIdx >= len(r.Particles) {
			return false
		}
	}

	for _, p := range r.Particles {
		if !p.isValid(r) {
			return false
		}
	}

	if r.Search != nil && r.Search.Phrase == "" {
		return false
	}

	return true
}

// OrphanSlots returns the names of every slot no particle provides.
func (r *Recipe) OrphanSlots() []string {
	var names []string
	for _, s := range r.Slots {
		if s.ProvidedByIdx < 0 {
			names = append(names, s.Name)
		}
	}
	return names
}

// CheckOrphanSlots implements the open question spec.md §9 leaves to
// the implementation: under strict mode an orphan slot is an
// InvalidRecipe error; under lenient mode it is left for IsResolved to
// report and CheckOrphanSlots returns nil. RecipeConfig.StrictOrphanSlots
// selects which mode a caller should use.
func (r *Recipe) CheckOrphanSlots(strict bool) error {
	if !strict {
		return nil
	}
	if orphans := r.OrphanSlots(); len(orphans) > 0 {
		return errors.NewInvalidRecipeError("orphan slots under strict mode: " + joinNames(orphans))
	}
	return nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
