// Package recipe implements the Recipe Graph: a frozen-on-normalize
// description of how Particles connect to Handles and Slots.
//
// Cyclic references between particles, handles and slots are expressed
// with arena-indexed slices rather than pointers between nodes: a
// Recipe owns []*Particle, []*Handle and []*Slot, and every
// cross-reference (a connection's target handle, a slot's producing
// particle) is a stable index into one of those arenas. This avoids
// reference cycles between Go values and makes clone/mergeInto a
// matter of walking arenas in order and recording old-index to
// new-index mappings.
package recipe

import "fmt"

// HandleFate is a handle's acquisition intent.
type HandleFate int

const (
	FateUnknown HandleFate = iota
	FateUse
	FateMap
	FateCopy
	FateCreate
)

func (f HandleFate) String() string {
	switch f {
	case FateUse:
		return "use"
	case FateMap:
		return "map"
	case FateCopy:
		return "copy"
	case FateCreate:
		return "create"
	default:
		return "unknown"
	}
}

// HandleMode is the access mode a particle requests on a connection.
type HandleMode int

const (
	ModeRead HandleMode = iota
	ModeWrite
	ModeReadWrite
)

func (m HandleMode) String() string {
	switch m {
	case ModeRead:
		return "reads"
	case ModeWrite:
		return "writes"
	default:
		return "reads writes"
	}
}

// Handle is a typed, fated reference to a store as seen within a
// Recipe. Index is this handle's position in Recipe.Handles; it is
// what connections refer to instead of a pointer.
type Handle struct {
	Index      int
	ID         string
	Type       string
	Fate       HandleFate
	StorageKey string
	Immediate  bool
}

func (h *Handle) isValid() bool {
	return h.Type != "" && h.Fate != FateUnknown
}

func (h *Handle) isResolved() bool {
	return h.Fate != FateUnknown && (h.StorageKey != "" || h.Fate == FateCreate)
}

// HandleConnection binds one of a particle's named connection points
// to a Handle, by index, with a requested access mode.
type HandleConnection struct {
	Name       string
	HandleIdx  int
	Mode       HandleMode
	TypeTag    string
	IsInterface bool
}

func (c *HandleConnection) isValid(r *Recipe) bool {
	if c.Name == "" {
		return false
	}
	return c.HandleIdx >= 0 && c.HandleIdx < len(r.Handles)
}

func (c *HandleConnection) isResolved(r *Recipe) bool {
	if !c.isValid(r) {
		return false
	}
	return r.Handles[c.HandleIdx].isResolved()
}

// Slot is a UI-composition node: one particle provides it, zero or
// more particles consume it.
type Slot struct {
	Index        int
	Name         string
	ProvidedByIdx int // particle index, -1 if unprovided
	ProvidedConn  string
}

func (s *Slot) isValid() bool {
	return s.Name != ""
}

func (s *Slot) isResolved() bool {
	return s.ProvidedByIdx >= 0
}

// SlotConnection binds a particle's consumed-slot point to a Slot, by
// index.
type SlotConnection struct {
	Name    string
	SlotIdx int
}

func (c *SlotConnection) isValid(r *Recipe) bool {
	if c.Name == "" {
		return false
	}
	return c.SlotIdx >= 0 && c.SlotIdx < len(r.Slots)
}

func (c *SlotConnection) isResolved(r *Recipe) bool {
	if !c.isValid(r) {
		return false
	}
	return r.Slots[c.SlotIdx].isResolved()
}

// Particle is a computation node connecting to Handles (data) and
// Slots (UI composition).
type Particle struct {
	Index       int
	Name        string
	SpecName    string
	Connections []*HandleConnection
	ConsumedSlots []*SlotConnection
	ProvidedSlots []int // indices into Recipe.Slots this particle provides
}

func (p *Particle) isValid(r *Recipe) bool {
	if p.SpecName == "" {
		return false
	}
	seen := make(map[string]bool, len(p.Connections))
	for _, c := range p.Connections {
		if seen[c.Name] {
			return false
		}
		seen[c.Name] = true
		if !c.isValid(r) {
			return false
		}
	}
	for _, sc := range p.ConsumedSlots {
		if !sc.isValid(r) {
			return false
		}
	}
	return true
}

func (p *Particle) isResolved(r *Recipe) bool {
	for _, c := range p.Connections {
		if !c.isResolved(r) {
			return false
		}
	}
	for _, sc := range p.ConsumedSlots {
		if !sc.isResolved(r) {
			return false
		}
	}
	return true
}

// ConnectionConstraint is an unresolved requirement recorded during
// recipe authoring — e.g. "some particle must write to a handle of
// this type". Nothing in this package removes one once a concrete
// HandleConnection satisfies it; IsResolved is false while any remain.
type ConnectionConstraint struct {
	ParticleName string
	ConnName     string
	Mode         HandleMode
	TypeTag      string
}

// Search is an optional free-text tag-search annotation on a recipe.
type Search struct {
	Phrase   string
	Resolved bool
}

// Recipe aggregates particles, handles, slots and any outstanding
// connection constraints. A zero Recipe is a valid empty, unfrozen
// recipe.
type Recipe struct {
	Name        string
	Particles   []*Particle
	Handles     []*Handle
	Slots       []*Slot
	Constraints []*ConnectionConstraint
	Verbs       []string
	Patterns    []string
	Search      *Search

	frozen bool
}

// IsFrozen reports whether normalize has already sealed this recipe.
func (r *Recipe) IsFrozen() bool { return r.frozen }

// NewRecipe returns an empty, mutable recipe.
func NewRecipe(name string) *Recipe {
	return &Recipe{Name: name}
}

// AddHandle appends h to the recipe's handle arena and sets h.Index.
func (r *Recipe) AddHandle(h *Handle) int {
	h.Index = len(r.Handles)
	r.Handles = append(r.Handles, h)
	return h.Index
}

// AddSlot appends s to the recipe's slot arena and sets s.Index. The
// caller is responsible for setting ProvidedByIdx to -1 on an
// as-yet-unprovided slot.
func (r *Recipe) AddSlot(s *Slot) int {
	s.Index = len(r.Slots)
	r.Slots = append(r.Slots, s)
	return s.Index
}

// AddParticle appends p to the recipe's particle arena and sets
// p.Index.
func (r *Recipe) AddParticle(p *Particle) int {
	p.Index = len(r.Particles)
	r.Particles = append(r.Particles, p)
	return p.Index
}

func (r *Recipe) requireMutable() error {
	if r.frozen {
		return fmt.Errorf("recipe: cannot mutate a frozen recipe")
	}
	return nil
}
