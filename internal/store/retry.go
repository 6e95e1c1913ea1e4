package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
)

// pendingWrite is a write a driver rejected (send returned false) and
// that is replayed by the next ReferenceModeStore.FlushRetries.
type pendingWrite struct {
	key string
	op  crdt.Operation
}

// RetryLedger tracks writes a Driver's send rejected so they can be
// replayed later. Replay happens only when ReferenceModeStore.FlushRetries
// runs (on each queue.RetryWorker tick); a successful send does not
// trigger a replay. One ledger is shared by a ReferenceModeStore
// across both its container and backing drivers, keyed by storage key.
type RetryLedger struct {
	mu      sync.Mutex
	pending map[string][]pendingWrite
	logger  *zap.Logger
}

// NewRetryLedger returns an empty RetryLedger.
func NewRetryLedger(logger *zap.Logger) *RetryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryLedger{
		pending: make(map[string][]pendingWrite),
		logger:  logger.Named("retry"),
	}
}

// Record remembers that op was rejected by the driver addressed by
// key, so it can be replayed later.
func (r *RetryLedger) Record(key string, op crdt.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[key] = append(r.pending[key], pendingWrite{key: key, op: op})
	r.logger.Warn("write rejected by driver, queued for retry",
		zap.String("key", key), zap.String("actor", string(op.Actor)))
}

// Drain returns and clears every pending write for key, in the order
// they were recorded, so the caller can replay them against the driver
// addressed by key.
func (r *RetryLedger) Drain(key string) []crdt.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.pending[key]
	delete(r.pending, key)

	ops := make([]crdt.Operation, len(items))
	for i, it := range items {
		ops[i] = it.op
	}
	return ops
}

// HasPending reports whether key has any writes awaiting retry.
// ReferenceModeStore.FlushRetries uses it to skip drivers with nothing
// to replay; ReferenceModeStore.Idle checks Idle instead.
func (r *RetryLedger) HasPending(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending[key]) > 0
}

// Idle reports whether no driver has any writes awaiting retry.
func (r *RetryLedger) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, items := range r.pending {
		if len(items) > 0 {
			return false
		}
	}
	return true
}
