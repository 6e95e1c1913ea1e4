package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/drivers"
	"github.com/arcs-project/arcs-core/internal/recipe"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

func newTestStore(t *testing.T) *store.ReferenceModeStore {
	t.Helper()

	containerKey := wire.StorageKey{Protocol: "arcs", Location: "container/test"}
	backingKey := wire.StorageKey{Protocol: "arcs", Location: "backing/test"}
	logger := zap.NewNop()

	s := store.New(store.Config{
		LocalActor:      crdt.Actor("test-actor"),
		ContainerKey:    containerKey,
		BackingKey:      backingKey,
		ContainerDriver: drivers.NewMemoryDriver(containerKey, logger),
		BackingDriver:   drivers.NewMemoryDriver(backingKey, logger),
		Container:       crdt.NewCollection(),
		NewEntity: func() *crdt.Entity {
			return crdt.NewEntity(map[string]crdt.Model{"value": crdt.NewSingleton()})
		},
		InboxSize: 16,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreService_PostOperations_StampsIDAndAccepts(t *testing.T) {
	s := newTestStore(t)
	svc := NewStoreService(s, zap.NewNop())

	ops := []crdt.Operation{{Type: crdt.OpSet, Field: "value", Payload: "hello", Actor: "test-actor"}}
	err := svc.PostOperations(context.Background(), "entity-1", ops)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Idle() }, time.Second, 5*time.Millisecond)
}

func TestStoreService_PostOperations_RejectsMismatchedID(t *testing.T) {
	s := newTestStore(t)
	svc := NewStoreService(s, zap.NewNop())

	ops := []crdt.Operation{{Type: crdt.OpSet, Field: "value", ID: "other-entity"}}
	err := svc.PostOperations(context.Background(), "entity-1", ops)
	assert.Error(t, err)
}

func TestStoreService_Subscribe_ReceivesModelUpdate(t *testing.T) {
	s := newTestStore(t)
	svc := NewStoreService(s, zap.NewNop())

	_, updates := svc.Subscribe()

	ops := []crdt.Operation{{Type: crdt.OpSet, Field: "value", Payload: "x", Actor: "test-actor"}}
	require.NoError(t, svc.PostOperations(context.Background(), "entity-2", ops))

	select {
	case msg := <-updates:
		assert.Equal(t, wire.MessageModelUpdate, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for model update")
	}
}

func TestStoreService_Idle_InitiallyTrue(t *testing.T) {
	s := newTestStore(t)
	svc := NewStoreService(s, zap.NewNop())
	assert.True(t, svc.Idle())
}

func buildResolvedRecipe() *recipe.Recipe {
	r := recipe.NewRecipe("TestRecipe")
	hIdx := r.AddHandle(&recipe.Handle{Type: "Thing", Fate: recipe.FateCreate})
	p := &recipe.Particle{SpecName: "TestParticle"}
	p.Connections = append(p.Connections, &recipe.HandleConnection{Name: "data", HandleIdx: hIdx, Mode: recipe.ModeReadWrite})
	r.AddParticle(p)
	return r
}

func TestRecipeService_Validate(t *testing.T) {
	svc := NewRecipeService(config.RecipeConfig{}, nil, zap.NewNop())
	r := buildResolvedRecipe()
	assert.True(t, svc.Validate(r))
}

func TestRecipeService_Normalize_ProducesCanonicalFormAndDigest(t *testing.T) {
	svc := NewRecipeService(config.RecipeConfig{}, nil, zap.NewNop())
	r := buildResolvedRecipe()

	canonical, digest, err := svc.Normalize(r)
	require.NoError(t, err)
	assert.NotEmpty(t, canonical)
	assert.NotEmpty(t, digest)
	assert.True(t, r.IsFrozen())
}

func TestRecipeService_Normalize_RejectsOrphanSlotsWhenStrict(t *testing.T) {
	svc := NewRecipeService(config.RecipeConfig{StrictOrphanSlots: true}, nil, zap.NewNop())
	r := recipe.NewRecipe("OrphanRecipe")
	r.AddSlot(&recipe.Slot{Name: "unfilled", ProvidedByIdx: -1})

	_, _, err := svc.Normalize(r)
	assert.Error(t, err)
}

func TestRecipeService_IsResolved(t *testing.T) {
	svc := NewRecipeService(config.RecipeConfig{}, nil, zap.NewNop())
	r := buildResolvedRecipe()
	require.NoError(t, r.Normalize())
	assert.True(t, svc.IsResolved(r))
}
