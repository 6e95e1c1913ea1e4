package ws

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/drivers"
	"github.com/arcs-project/arcs-core/internal/services"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

func newTestStoreService(t *testing.T) *services.StoreService {
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

	return services.NewStoreService(s, logger)
}

func newTestClient(t *testing.T) (*client, *services.StoreService) {
	svc := newTestStoreService(t)
	return &client{
		id:       uuid.New(),
		send:     make(chan wire.ProxyMessage, 8),
		storeSvc: svc,
		logger:   zap.NewNop(),
	}, svc
}

func TestHandleMessage_GroupsOperationsByEntityID(t *testing.T) {
	cl, svc := newTestClient(t)

	msg := wire.ProxyMessage{
		Type: wire.MessageOperations,
		Operations: []crdt.Operation{
			{Type: crdt.OpSet, Field: "value", ID: "entity-a", Payload: "x", Actor: "test-actor"},
			{Type: crdt.OpSet, Field: "value", ID: "entity-b", Payload: "y", Actor: "test-actor"},
		},
	}

	cl.handleMessage(context.Background(), msg)

	require.Eventually(t, func() bool { return svc.Idle() }, time.Second, 5*time.Millisecond)
}

func TestHandleMessage_SyncRequestExcludesRequestingSubscriber(t *testing.T) {
	cl, svc := newTestClient(t)
	subID, ownUpdates := svc.Subscribe()
	cl.subID = subID

	_, otherUpdates := svc.Subscribe()

	cl.handleMessage(context.Background(), wire.ProxyMessage{Type: wire.MessageSyncRequest})

	select {
	case msg := <-otherUpdates:
		assert.Equal(t, wire.MessageModelUpdate, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sync broadcast on other subscriber")
	}

	select {
	case <-ownUpdates:
		t.Fatal("requesting subscriber should be excluded from its own sync broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleMessage_UnknownTypeDoesNotPanic(t *testing.T) {
	cl, _ := newTestClient(t)
	assert.NotPanics(t, func() {
		cl.handleMessage(context.Background(), wire.ProxyMessage{Type: wire.MessageType(99)})
	})
}

func TestClientClose_IsIdempotent(t *testing.T) {
	cl, _ := newTestClient(t)
	assert.NotPanics(t, func() {
		cl.close()
		cl.close()
	})
}
