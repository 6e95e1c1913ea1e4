package recipe

// IsResolved reports whether every obligation in r has been
// discharged: r must be frozen, carry zero outstanding
// ConnectionConstraints, have a resolved Search (if any), and every
// handle/particle/slot/connection must itself be resolved. Pure
// predicate, no side effects.
func (r *Recipe) IsResolved() bool {
	if !r.frozen {
		return false
	}
	if len(r.Constraints) != 0 {
		return false
	}
	if r.Search != nil && !r.Search.Resolved {
		return false
	}
	for _, h := range r.Handles {
		if !h.isResolved() {
			return false
		}
	}
	for _, s := range r.Slots {
		if !s.isResolved() {
			return false
		}
	}
	for _, p := range r.Particles {
		if !p.isResolved(r) {
			return false
		}
	}
	return true
}
