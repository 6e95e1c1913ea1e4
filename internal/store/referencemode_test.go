package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// fakeDriver is a minimal in-package Driver: internal/drivers can't be
// imported here (it imports this package for store.ReceiverFunc), so
// tests that need a Driver reimplement the same shape MemoryDriver uses.
type fakeDriver struct {
	mu       sync.Mutex
	key      wire.StorageKey
	receiver ReceiverFunc
	sent     []interface{}
}

func newFakeDriver(key wire.StorageKey) *fakeDriver { return &fakeDriver{key: key} }

func (d *fakeDriver) Key() wire.StorageKey { return d.key }

func (d *fakeDriver) RegisterReceiver(r ReceiverFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receiver = r
}

func (d *fakeDriver) Send(_ context.Context, data interface{}, _ crdt.VersionVector) (bool, error) {
	d.mu.Lock()
	d.sent = append(d.sent, data)
	d.mu.Unlock()
	return true, nil
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) deliver(data interface{}, version crdt.VersionVector) {
	d.mu.Lock()
	r := d.receiver
	d.mu.Unlock()
	if r != nil {
		r(data, version)
	}
}

func newTestReferenceStore(t *testing.T, actor crdt.Actor) (*ReferenceModeStore, *fakeDriver, *fakeDriver) {
	t.Helper()

	containerKey := wire.StorageKey{Protocol: "arcs", Location: "container/test"}
	backingKey := wire.StorageKey{Protocol: "arcs", Location: "backing/test"}
	containerDriver := newFakeDriver(containerKey)
	backingDriver := newFakeDriver(backingKey)

	s := New(Config{
		LocalActor:      actor,
		ContainerKey:    containerKey,
		BackingKey:      backingKey,
		ContainerDriver: containerDriver,
		BackingDriver:   backingDriver,
		Container:       crdt.NewCollection(),
		NewEntity: func() *crdt.Entity {
			return crdt.NewEntity(map[string]crdt.Model{"value": crdt.NewSingleton()})
		},
		InboxSize: 16,
		Logger:    zap.NewNop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)
	t.Cleanup(func() { _ = s.Close() })

	return s, containerDriver, backingDriver
}

func TestOperationPipeline_Apply_RefreshesReferenceOnEverySuccessfulBatch(t *testing.T) {
	p := NewOperationPipeline(wire.StorageKey{Protocol: "arcs", Location: "backing/test"})
	newEntity := func() *crdt.Entity {
		return crdt.NewEntity(map[string]crdt.Model{"value": crdt.NewSingleton()})
	}

	entity, applied, containerOp, err := p.Apply("e1", nil, newEntity,
		[]crdt.Operation{{Type: crdt.OpSet, Field: "value", ID: "e1", Payload: "a", Clock: crdt.VersionVector{"actor": 1}}},
		crdt.VersionVector{"actor": 1})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.NotNil(t, containerOp)
	firstVersion := containerOp.Payload.(wire.Reference).Version

	_, applied, containerOp, err = p.Apply("e1", entity, newEntity,
		[]crdt.Operation{{Type: crdt.OpSet, Field: "value", ID: "e1", Payload: "b", Clock: crdt.VersionVector{"actor": 2}}},
		crdt.VersionVector{"actor": 2})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.NotNil(t, containerOp, "a second successful write must still refresh the container reference")

	secondVersion := containerOp.Payload.(wire.Reference).Version
	assert.True(t, secondVersion.Dominates(firstVersion))
	assert.False(t, firstVersion.Dominates(secondVersion))
}

func TestDecodeContainerReferences_ExtractsLiveReferences(t *testing.T) {
	col := crdt.NewCollection()
	ref := wire.Reference{
		ID:         "e1",
		StorageKey: wire.StorageKey{Protocol: "arcs", Location: "backing/test"},
		Version:    crdt.VersionVector{"actor": 2},
	}
	_, err := col.Add("e1", ref, crdt.VersionVector{"actor": 2})
	require.NoError(t, err)

	refs, err := decodeContainerReferences(col.GetData())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "e1", refs[0].ID)
	assert.Equal(t, uint64(2), refs[0].Version.Get("actor"))
}

func TestOnContainerDriverMessage_GatesUntilBackingCatchesUp(t *testing.T) {
	s, containerDriver, _ := newTestReferenceStore(t, crdt.Actor("replica-a"))

	threshold := crdt.VersionVector{"replica-a": 3}
	remoteContainer := crdt.NewCollection()
	_, err := remoteContainer.Add("e1", wire.Reference{ID: "e1", StorageKey: s.backingKey, Version: threshold}, threshold)
	require.NoError(t, err)

	containerDriver.deliver(remoteContainer.GetData(), threshold)

	require.Eventually(t, func() bool {
		return s.waitQueue.State("e1") == StateAwaitingBacking
	}, time.Second, 5*time.Millisecond, "reference should be enqueued as AWAITING_BACKING, not broadcast immediately")
	assert.False(t, s.Idle())

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		ops := []crdt.Operation{{
			Type: crdt.OpSet, Field: "value", ID: "e1", Payload: i,
			Clock: crdt.VersionVector{"replica-a": uint64(i)},
		}}
		require.NoError(t, s.applyOperations(ctx, ops))
	}

	require.Eventually(t, func() bool {
		return s.waitQueue.State("e1") == StateReady
	}, time.Second, 5*time.Millisecond, "reference should transition to READY once backing dominates its threshold")
	assert.True(t, s.Idle())
}

func TestOnContainerDriverMessage_BroadcastsImmediatelyWhenAlreadySatisfied(t *testing.T) {
	s, containerDriver, _ := newTestReferenceStore(t, crdt.Actor("replica-a"))

	ctx := context.Background()
	ops := []crdt.Operation{{Type: crdt.OpSet, Field: "value", ID: "e1", Payload: "x", Clock: crdt.VersionVector{"replica-a": 1}}}
	require.NoError(t, s.applyOperations(ctx, ops))

	subID, updates := s.Subscribe()
	_ = subID

	reached := s.backingVersions["e1"]
	remoteContainer := crdt.NewCollection()
	_, err := remoteContainer.Add("e1", wire.Reference{ID: "e1", StorageKey: s.backingKey, Version: reached}, reached)
	require.NoError(t, err)

	containerDriver.deliver(remoteContainer.GetData(), reached)

	select {
	case msg := <-updates:
		assert.Equal(t, wire.MessageModelUpdate, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("an already-satisfied reference should broadcast without waiting")
	}
	assert.Equal(t, StateReady, s.waitQueue.State("e1"))
}

func TestDispatch_ModelUpdateMessageUpsertsEntityAndPublishesReference(t *testing.T) {
	s, _, _ := newTestReferenceStore(t, crdt.Actor("replica-a"))

	incoming := crdt.NewEntity(map[string]crdt.Model{"value": crdt.NewSingleton()})
	_, err := incoming.ApplyOperation(crdt.Operation{Type: crdt.OpSet, Field: "value", ID: "e1", Payload: "hello", Clock: crdt.VersionVector{"replica-a": 1}})
	require.NoError(t, err)

	s.Post(wire.ProxyMessage{Type: wire.MessageModelUpdate, EntityID: "e1", Model: incoming})

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		entity := s.backing["e1"]
		return entity != nil && entity.Field("value").GetParticleView() == "hello"
	}, time.Second, 5*time.Millisecond)

	col, ok := s.container.(*crdt.Collection)
	require.True(t, ok)
	assert.Contains(t, col.IDs(), "e1")
}

func TestCloneFrom_SeedsDestinationFromSourceSnapshot(t *testing.T) {
	source, _, _ := newTestReferenceStore(t, crdt.Actor("replica-a"))
	dest, _, _ := newTestReferenceStore(t, crdt.Actor("replica-b"))

	ctx := context.Background()
	ops := []crdt.Operation{{Type: crdt.OpSet, Field: "value", ID: "e1", Payload: "hello", Clock: crdt.VersionVector{"replica-a": 1}}}
	require.NoError(t, source.applyOperations(ctx, ops))

	require.NoError(t, dest.cloneFrom(ctx, source))

	dest.mu.Lock()
	entity := dest.backing["e1"]
	dest.mu.Unlock()
	require.NotNil(t, entity)
	assert.Equal(t, "hello", entity.Field("value").GetParticleView())

	col, ok := dest.container.(*crdt.Collection)
	require.True(t, ok)
	assert.Contains(t, col.IDs(), "e1")
	assert.True(t, dest.waitQueue.Idle())
}
