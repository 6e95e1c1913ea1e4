package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// EntryState is where a container entry sits in the
// AWAITING_BACKING -> READY state machine described in spec.md §4.C.
type EntryState int

const (
	StateAwaitingBacking EntryState = iota
	StateReady
)

func (s EntryState) String() string {
	if s == StateReady {
		return "READY"
	}
	return "AWAITING_BACKING"
}

type pendingEntry struct {
	reference wire.Reference
	threshold crdt.VersionVector
	waiters   []chan struct{}
}

// WaitQueue holds container entries whose backing entity hasn't yet
// reached the version the reference points at. It is keyed on entity
// id rather than on an opaque message identity, since a handle can
// only have one in-flight backing expectation per id at a time.
type WaitQueue struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
	logger  *zap.Logger
}

// NewWaitQueue returns an empty WaitQueue.
func NewWaitQueue(logger *zap.Logger) *WaitQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitQueue{
		pending: make(map[string]*pendingEntry),
		logger:  logger.Named("waitqueue"),
	}
}

// Enqueue registers ref as AWAITING_BACKING until the backing store for
// ref.ID reaches a version dominating threshold. It returns a channel
// that closes when that happens — callers typically select on it
// alongside a context deadline.
func (q *WaitQueue) Enqueue(ref wire.Reference, threshold crdt.VersionVector) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	done := make(chan struct{})
	entry, ok := q.pending[ref.ID]
	if !ok {
		entry = &pendingEntry{reference: ref, threshold: threshold}
		q.pending[ref.ID] = entry
	}
	entry.waiters = append(entry.waiters, done)

	q.logger.Debug("entry awaiting backing", zap.String("id", ref.ID))
	return done
}

// State reports whether id is currently READY (not pending) or still
// AWAITING_BACKING.
func (q *WaitQueue) State(id string) EntryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, pending := q.pending[id]; pending {
		return StateAwaitingBacking
	}
	return StateReady
}

// Satisfy notifies the wait queue that id's backing store has advanced
// to current. Any pending entry whose threshold is now dominated
// transitions to READY and every waiter is released.
func (q *WaitQueue) Satisfy(id string, current crdt.VersionVector) {
	q.mu.Lock()
	entry, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	if !current.Dominates(entry.threshold) {
		q.mu.Unlock()
		return
	}
	delete(q.pending, id)
	waiters := entry.waiters
	q.mu.Unlock()

	q.logger.Debug("entry transitioned to READY", zap.String("id", id))
	for _, w := range waiters {
		close(w)
	}
}

// Pending returns the ids currently AWAITING_BACKING.
func (q *WaitQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.pending))
	for id := range q.pending {
		out = append(out, id)
	}
	return out
}

// Idle reports whether the wait queue has no outstanding entries — one
// of the two conditions ReferenceModeStore.idle() checks.
func (q *WaitQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}
