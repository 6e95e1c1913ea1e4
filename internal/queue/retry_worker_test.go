package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// flakyDriver rejects its first N sends, then accepts every one after.
type flakyDriver struct {
	key      wire.StorageKey
	rejectN  int32
	sent     int32
	accepted int32
}

func (d *flakyDriver) Key() wire.StorageKey                        { return d.key }
func (d *flakyDriver) RegisterReceiver(store.ReceiverFunc)         {}
func (d *flakyDriver) Close() error                                { return nil }
func (d *flakyDriver) Send(_ context.Context, _ interface{}, _ crdt.VersionVector) (bool, error) {
	n := atomic.AddInt32(&d.sent, 1)
	if n <= d.rejectN {
		return false, nil
	}
	atomic.AddInt32(&d.accepted, 1)
	return true, nil
}

func newTestStore(backing *flakyDriver, container *flakyDriver) *store.ReferenceModeStore {
	return store.New(store.Config{
		LocalActor:      crdt.Actor("local"),
		ContainerKey:    container.key,
		BackingKey:      backing.key,
		ContainerDriver: container,
		BackingDriver:   backing,
		Container:       crdt.NewCollection(),
		NewEntity: func() *crdt.Entity {
			return crdt.NewEntity(map[string]crdt.Model{"count": crdt.NewCount()})
		},
		Logger: zap.NewNop(),
	})
}

func TestRetryWorker_FlushesRejectedWritesOnNextTick(t *testing.T) {
	backing := &flakyDriver{key: wire.StorageKey{Protocol: "mem", Location: "backing"}, rejectN: 1}
	container := &flakyDriver{key: wire.StorageKey{Protocol: "mem", Location: "container"}, rejectN: 1}
	s := newTestStore(backing, container)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Close()

	s.Post(wire.ProxyMessage{
		Type: wire.MessageOperations,
		Operations: []crdt.Operation{
			{Type: crdt.OpIncrement, ID: "entity-1", Field: "count", Actor: crdt.Actor("local"), Value: 1},
		},
	})

	require.Eventually(t, func() bool {
		return !s.Idle()
	}, time.Second, 5*time.Millisecond, "store should report pending retries after a rejected send")

	worker := NewRetryWorker(s, 10*time.Millisecond, zap.NewNop())
	worker.Start(ctx)
	defer worker.Stop()

	require.Eventually(t, func() bool {
		return s.Idle()
	}, time.Second, 5*time.Millisecond, "retry worker should drain the ledger once the driver accepts")

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&backing.accepted)), 1)
}

func TestRetryWorker_StopWaitsForLoopExit(t *testing.T) {
	backing := &flakyDriver{key: wire.StorageKey{Protocol: "mem", Location: "backing"}}
	container := &flakyDriver{key: wire.StorageKey{Protocol: "mem", Location: "container"}}
	s := newTestStore(backing, container)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Close()

	worker := NewRetryWorker(s, 5*time.Millisecond, zap.NewNop())
	worker.Start(ctx)
	worker.Stop()
}
