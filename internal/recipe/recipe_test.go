package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTwoParticleRecipe builds the scenario from the testable
// properties: particles P and Q connected through a handle H.
func buildTwoParticleRecipe() *Recipe {
	r := NewRecipe("PQviaH")
	h := &Handle{ID: "H", Type: "Thing", Fate: FateCreate, StorageKey: "vol0/H"}
	r.AddHandle(h)

	q := &Particle{Name: "Q", SpecName: "QParticle"}
	q.Connections = append(q.Connections, &HandleConnection{Name: "input", HandleIdx: h.Index, Mode: ModeRead})
	r.AddParticle(q)

	p := &Particle{Name: "P", SpecName: "PParticle"}
	p.Connections = append(p.Connections, &HandleConnection{Name: "output", HandleIdx: h.Index, Mode: ModeWrite})
	r.AddParticle(p)

	return r
}

func TestRecipe_IsValidRejectsDuplicateHandleIDs(t *testing.T) {
	r := NewRecipe("dup")
	r.AddHandle(&Handle{ID: "H", Type: "Thing", Fate: FateUse, StorageKey: "k"})
	r.AddHandle(&Handle{ID: "H", Type: "Thing", Fate: FateUse, StorageKey: "k2"})
	assert.False(t, r.IsValid())
}

func TestRecipe_NormalizeRefusesWhenInvalid(t *testing.T) {
	r := NewRecipe("bad")
	r.AddParticle(&Particle{Name: "P", SpecName: "P", Connections: []*HandleConnection{
		{Name: "x", HandleIdx: 99},
	}})
	err := r.Normalize()
	require.Error(t, err)
	assert.False(t, r.IsFrozen())
}

func TestRecipe_NormalizeRefusesWhenAlreadyFrozen(t *testing.T) {
	r := buildTwoParticleRecipe()
	require.NoError(t, r.Normalize())
	err := r.Normalize()
	assert.Error(t, err)
}

func TestRecipe_NormalizeIsIdempotentOnToString(t *testing.T) {
	r := buildTwoParticleRecipe()
	require.NoError(t, r.Normalize())
	first := r.ToString()
	second := r.ToString()
	assert.Equal(t, first, second)
}

func TestRecipe_NormalizeOrdersInterfaceConnectionsLast(t *testing.T) {
	r := NewRecipe("iface")
	h1 := &Handle{ID: "A", Type: "Thing", Fate: FateCreate, StorageKey: "k1"}
	h2 := &Handle{ID: "B", Type: "Thing", Fate: FateCreate, StorageKey: "k2"}
	r.AddHandle(h1)
	r.AddHandle(h2)

	p := &Particle{Name: "P", SpecName: "P"}
	p.Connections = append(p.Connections,
		&HandleConnection{Name: "iface", HandleIdx: h1.Index, Mode: ModeRead, IsInterface: true},
		&HandleConnection{Name: "concrete", HandleIdx: h2.Index, Mode: ModeRead},
	)
	r.AddParticle(p)

	require.NoError(t, r.Normalize())
	conns := r.Particles[0].Connections
	require.Len(t, conns, 2)
	assert.False(t, conns[0].IsInterface)
	assert.True(t, conns[1].IsInterface)
}

func TestRecipe_IsResolvedRequiresFrozenAndNoConstraints(t *testing.T) {
	r := buildTwoParticleRecipe()
	assert.False(t, r.IsResolved(), "unfrozen recipe is never resolved")

	require.NoError(t, r.Normalize())
	assert.True(t, r.IsResolved())

	r2 := buildTwoParticleRecipe()
	r2.Constraints = append(r2.Constraints, &ConnectionConstraint{ParticleName: "P", ConnName: "output"})
	require.NoError(t, r2.Normalize())
	assert.False(t, r2.IsResolved())
}

func TestRecipe_CloneProducesIndependentUnfrozenCopy(t *testing.T) {
	r := buildTwoParticleRecipe()
	require.NoError(t, r.Normalize())

	clone := r.Clone()
	assert.False(t, clone.IsFrozen())
	assert.Equal(t, len(r.Particles), len(clone.Particles))
	assert.Equal(t, len(r.Handles), len(clone.Handles))

	clone.Handles[0].StorageKey = "mutated"
	assert.NotEqual(t, r.Handles[0].StorageKey, clone.Handles[0].StorageKey)
}

func TestRecipe_MergeIntoAppendsToExistingTarget(t *testing.T) {
	r := buildTwoParticleRecipe()
	target := NewRecipe("target")
	target.AddParticle(&Particle{Name: "Existing", SpecName: "Existing"})

	newParticles, newHandles, _, _ := r.MergeInto(target)
	assert.Len(t, newParticles, 2)
	assert.Len(t, newHandles, 1)
	assert.Len(t, target.Particles, 3)
}

func TestRecipe_DigestIsStableAndOrderIndependentOfAuthoringOrder(t *testing.T) {
	r1 := buildTwoParticleRecipe()
	require.NoError(t, r1.Normalize())

	r2 := NewRecipe("PQviaH")
	h := &Handle{ID: "H", Type: "Thing", Fate: FateCreate, StorageKey: "vol0/H"}
	r2.AddHandle(h)
	p := &Particle{Name: "P", SpecName: "PParticle"}
	p.Connections = append(p.Connections, &HandleConnection{Name: "output", HandleIdx: h.Index, Mode: ModeWrite})
	r2.AddParticle(p)
	q := &Particle{Name: "Q", SpecName: "QParticle"}
	q.Connections = append(q.Connections, &HandleConnection{Name: "input", HandleIdx: h.Index, Mode: ModeRead})
	r2.AddParticle(q)
	require.NoError(t, r2.Normalize())

	assert.Equal(t, r1.Digest(), r2.Digest(), "authoring order should not affect the canonical digest")
}

func TestRecipe_ToStringAssignsSyntheticNamesOnlyWhenMissing(t *testing.T) {
	r := NewRecipe("")
	h := &Handle{Type: "Thing", Fate: FateCreate, StorageKey: "k"}
	r.AddHandle(h)
	p := &Particle{SpecName: "Anon"}
	p.Connections = append(p.Connections, &HandleConnection{Name: "c", HandleIdx: h.Index})
	r.AddParticle(p)

	require.NoError(t, r.Normalize())
	out := r.ToString()
	assert.Contains(t, out, "handle0")
	assert.Contains(t, out, "particle0")
}

func TestRecipe_CheckOrphanSlotsStrictVsLenient(t *testing.T) {
	r := NewRecipe("orphan")
	s := &Slot{Name: "main", ProvidedByIdx: -1}
	r.AddSlot(s)

	assert.NoError(t, r.CheckOrphanSlots(false))
	assert.Error(t, r.CheckOrphanSlots(true))
}
