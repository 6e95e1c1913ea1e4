// Package drivers implements the store.Driver contract against
// concrete backends: an in-process map for tests and single-binary
// demos, and Postgres/Redis/NATS for a real deployment.
package drivers

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// MemoryDriver is an in-process store.Driver: every Send immediately
// succeeds and records the data and version for Snapshot, with no
// persistence or network I/O. Send does not invoke the registered
// receiver; only Deliver does. It is the teacher's
// MemoryStorage minus the TTL/expiry machinery, since CRDT state never
// expires.
type MemoryDriver struct {
	mu       sync.Mutex
	key      wire.StorageKey
	receiver store.ReceiverFunc
	last     interface{}
	version  crdt.VersionVector
	logger   *zap.Logger
}

// NewMemoryDriver returns a MemoryDriver bound to key.
func NewMemoryDriver(key wire.StorageKey, logger *zap.Logger) *MemoryDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryDriver{key: key, logger: logger.Named("memory_driver")}
}

func (d *MemoryDriver) Key() wire.StorageKey { return d.key }

func (d *MemoryDriver) RegisterReceiver(receiver store.ReceiverFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receiver = receiver
}

func (d *MemoryDriver) Send(_ context.Context, data interface{}, version crdt.VersionVector) (bool, error) {
	d.mu.Lock()
	d.last = data
	d.version = version
	d.mu.Unlock()
	d.logger.Debug("stored update", zap.String("key", d.key.String()))
	return true, nil
}

// Deliver simulates a driver-originated message arriving from another
// replica, invoking the registered receiver directly. Tests use this
// to exercise the store's driver-message path without a real backend.
func (d *MemoryDriver) Deliver(data interface{}, version crdt.VersionVector) {
	d.mu.Lock()
	receiver := d.receiver
	d.mu.Unlock()
	if receiver != nil {
		receiver(data, version)
	}
}

func (d *MemoryDriver) Snapshot() (interface{}, crdt.VersionVector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.version
}

func (d *MemoryDriver) Close() error { return nil }
