package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/crdt"
	arcserrors "github.com/arcs-project/arcs-core/internal/errors"
	"github.com/arcs-project/arcs-core/internal/metrics"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// ReferenceModeStore is the CRDT-replica coordinator described in
// spec.md §4.C: a container store of References backed by a family of
// Entity instances, one per referenced id, created lazily as
// operations arrive. All mutation flows through a single goroutine
// (run, started by Start) draining a bounded message channel, matching
// the single-threaded cooperative dispatch model of spec.md §5.
type ReferenceModeStore struct {
	localActor crdt.Actor

	containerKey wire.StorageKey
	backingKey   wire.StorageKey

	containerDriver Driver
	backingDriver   Driver

	container  Model
	backing    map[string]*crdt.Entity
	newEntity  func() *crdt.Entity
	localClock crdt.VersionVector

	// backingVersions tracks, per entity id, the highest version vector
	// known to have actually reached the backing store. It is what
	// onContainerDriverMessage checks a reference's threshold against
	// before deciding an id is already READY.
	backingVersions map[string]crdt.VersionVector

	waitQueue *WaitQueue
	retries   *RetryLedger
	notifier  *Notifier
	pipeline  *OperationPipeline

	inbox  chan wire.ProxyMessage
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

// Model is the subset of crdt.Model a container store needs: Collection
// and Singleton both satisfy it directly.
type Model = crdt.Model

// Config bundles the construction-time dependencies of a
// ReferenceModeStore.
type Config struct {
	LocalActor      crdt.Actor
	ContainerKey    wire.StorageKey
	BackingKey      wire.StorageKey
	ContainerDriver Driver
	BackingDriver   Driver
	Container       Model
	NewEntity       func() *crdt.Entity
	InboxSize       int
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

// New constructs a ReferenceModeStore but does not start its dispatch
// loop; call Start for that.
func New(cfg Config) *ReferenceModeStore {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("referencemode")

	inboxSize := cfg.InboxSize
	if inboxSize <= 0 {
		inboxSize = 256
	}

	s := &ReferenceModeStore{
		localActor:      cfg.LocalActor,
		containerKey:    cfg.ContainerKey,
		backingKey:      cfg.BackingKey,
		containerDriver: cfg.ContainerDriver,
		backingDriver:   cfg.BackingDriver,
		container:       cfg.Container,
		backing:         make(map[string]*crdt.Entity),
		backingVersions: make(map[string]crdt.VersionVector),
		newEntity:       cfg.NewEntity,
		waitQueue:       NewWaitQueue(logger),
		retries:         NewRetryLedger(logger),
		notifier:        NewNotifier(logger),
		pipeline:        NewOperationPipeline(cfg.BackingKey),
		localClock:      crdt.NewVersionVector(),
		inbox:           make(chan wire.ProxyMessage, inboxSize),
		done:            make(chan struct{}),
		logger:          logger,
		metrics:         cfg.Metrics,
	}

	if s.containerDriver != nil {
		s.containerDriver.RegisterReceiver(s.onContainerDriverMessage)
	}
	if s.backingDriver != nil {
		s.backingDriver.RegisterReceiver(s.onBackingDriverMessage)
	}

	return s
}

// Start launches the single dispatch goroutine. It returns immediately;
// call Close (or cancel ctx) to stop it.
func (s *ReferenceModeStore) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *ReferenceModeStore) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.inbox:
			s.dispatch(ctx, msg)
		}
	}
}

func (s *ReferenceModeStore) dispatch(ctx context.Context, msg wire.ProxyMessage) {
	switch msg.Type {
	case wire.MessageOperations:
		if err := s.applyOperations(ctx, msg.Operations); err != nil {
			s.logger.Error("failed to apply operations", zap.Error(err))
		}
	case wire.MessageSyncRequest:
		s.notifier.Broadcast(wire.ProxyMessage{Type: wire.MessageModelUpdate, Model: s.containerView()}, msg.ID)
	case wire.MessageModelUpdate:
		if err := s.applyModelUpdate(ctx, msg.EntityID, msg.Model); err != nil {
			s.logger.Error("failed to apply model update", zap.String("id", msg.EntityID), zap.Error(err))
		}
	default:
		s.logger.Warn("unhandled proxy message type", zap.Int("type", int(msg.Type)))
	}
}

// Post enqueues msg for processing by the dispatch goroutine. It is
// safe to call from any goroutine (that's the whole point of the
// channel-based boundary).
func (s *ReferenceModeStore) Post(msg wire.ProxyMessage) {
	s.inbox <- msg
}

// Subscribe registers a new proxy for ModelUpdate notifications.
func (s *ReferenceModeStore) Subscribe() (int, <-chan wire.ProxyMessage) {
	return s.notifier.Subscribe(32)
}

func (s *ReferenceModeStore) applyOperations(ctx context.Context, ops []crdt.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byEntity := make(map[string][]crdt.Operation)
	for _, op := range ops {
		byEntity[op.ID] = append(byEntity[op.ID], op)
	}

	for id, entityOps := range byEntity {
		existing := s.backing[id]
		s.localClock = s.localClock.WithIncrement(s.localActor, s.localClock.Get(s.localActor)+1)
		clock := s.localClock.Clone()

		updated, applied, containerOp, err := s.pipeline.Apply(id, existing, s.newEntity, entityOps, clock)
		if err != nil {
			return arcserrors.Wrap(err, "applying backing operations")
		}
		s.backing[id] = updated

		if len(applied) == 0 {
			continue
		}

		sendStart := time.Now()
		ok, err := s.backingDriver.Send(ctx, updated.GetData(), clock)
		s.recordDriverSend(s.backingKey.String(), ok, time.Since(sendStart))
		if err != nil {
			return arcserrors.Wrap(err, "sending backing update")
		} else if !ok {
			for _, op := range applied {
				s.retries.Record(s.backingKey.String(), op)
			}
		}
		for _, op := range applied {
			s.recordOpApplied(op.Type)
		}

		if containerOp != nil {
			if _, err := s.container.ApplyOperation(*containerOp); err != nil {
				return arcserrors.Wrap(err, "publishing container reference")
			}
			sendStart := time.Now()
			ok, err := s.containerDriver.Send(ctx, s.container.GetData(), clock)
			s.recordDriverSend(s.containerKey.String(), ok, time.Since(sendStart))
			if err != nil {
				return arcserrors.Wrap(err, "sending container update")
			} else if !ok {
				s.retries.Record(s.containerKey.String(), *containerOp)
			}
		}

		s.backingVersions[id] = clock
		s.waitQueue.Satisfy(id, clock)
	}

	s.notifier.Broadcast(wire.ProxyMessage{Type: wire.MessageModelUpdate, Model: s.containerView()}, 0)
	s.reportGauges()
	return nil
}

// applyModelUpdate handles a proxy pushing a full entity snapshot rather
// than incremental operations, per spec.md §4.C's second incoming
// message shape. It merges the snapshot into whatever the backing store
// already holds for id (Entity.Merge is the diff: fields that haven't
// actually changed are no-ops), upserts the result, and republishes the
// container Reference the same way a successful operation batch does.
func (s *ReferenceModeStore) applyModelUpdate(ctx context.Context, id string, model interface{}) error {
	incoming, ok := model.(*crdt.Entity)
	if !ok {
		return arcserrors.NewSchemaViolationError(fmt.Sprintf("model update for %q is not an entity snapshot (%T)", id, model))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.backing[id]
	if existing == nil {
		existing = s.newEntity()
	}
	if _, err := existing.Merge(incoming); err != nil {
		return arcserrors.Wrap(err, "merging model update")
	}
	s.backing[id] = existing

	s.localClock = s.localClock.WithIncrement(s.localActor, s.localClock.Get(s.localActor)+1)
	clock := s.localClock.Clone()

	sendStart := time.Now()
	okBacking, err := s.backingDriver.Send(ctx, existing.GetData(), clock)
	s.recordDriverSend(s.backingKey.String(), okBacking, time.Since(sendStart))
	if err != nil {
		return arcserrors.Wrap(err, "sending backing update")
	}

	ref := wire.Reference{ID: id, StorageKey: s.backingKey, Version: clock.Clone()}
	containerOp := crdt.Operation{Type: crdt.OpAdd, ID: id, Payload: ref, Clock: clock.Clone()}
	if _, err := s.container.ApplyOperation(containerOp); err != nil {
		return arcserrors.Wrap(err, "publishing container reference")
	}
	if !okBacking {
		s.retries.Record(s.backingKey.String(), containerOp)
	}

	sendStart = time.Now()
	okContainer, err := s.containerDriver.Send(ctx, s.container.GetData(), clock)
	s.recordDriverSend(s.containerKey.String(), okContainer, time.Since(sendStart))
	if err != nil {
		return arcserrors.Wrap(err, "sending container update")
	} else if !okContainer {
		s.retries.Record(s.containerKey.String(), containerOp)
	}

	s.backingVersions[id] = clock
	s.waitQueue.Satisfy(id, clock)

	s.notifier.Broadcast(wire.ProxyMessage{Type: wire.MessageModelUpdate, Model: s.containerView()}, 0)
	s.reportGauges()
	return nil
}

// cloneFrom bootstraps s's backing store from other's current state: it
// takes a snapshot of every entity other currently holds and applies
// each one as a ModelUpdate, per spec.md §4.C. This is how a freshly
// constructed replica is seeded from an existing one without replaying
// its full operation history.
func (s *ReferenceModeStore) cloneFrom(ctx context.Context, other *ReferenceModeStore) error {
	other.mu.Lock()
	snapshot := make(map[string]*crdt.Entity, len(other.backing))
	for id, entity := range other.backing {
		snapshot[id] = entity.Clone().(*crdt.Entity)
	}
	other.mu.Unlock()

	for id, entity := range snapshot {
		if err := s.applyModelUpdate(ctx, id, entity); err != nil {
			return arcserrors.Wrap(err, fmt.Sprintf("cloning entity %q", id))
		}
	}
	return nil
}

func (s *ReferenceModeStore) recordDriverSend(key string, ok bool, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordDriverSend(key, ok, d)
	}
}

func (s *ReferenceModeStore) recordOpApplied(opType crdt.OperationType) {
	if s.metrics != nil {
		s.metrics.RecordOpApplied(opType.String())
	}
}

func (s *ReferenceModeStore) reportGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetWaitQueueDepth(len(s.waitQueue.Pending()))
	s.metrics.SetSubscriberCount(s.notifier.Count())
}

// onContainerDriverMessage is the correctness-critical path of spec.md
// §4.C: a driver-delivered container update must never reach subscribed
// proxies until every Reference it carries can actually be dereferenced
// locally. It decodes the payload into the References it points at,
// consults backingVersions for each id and, for anything not already
// known to have arrived, enqueues it into the wait queue. The broadcast
// only fires once every referenced id has transitioned to READY.
func (s *ReferenceModeStore) onContainerDriverMessage(data interface{}, version crdt.VersionVector) {
	s.logger.Debug("container driver delivered update", zap.Any("version", version))

	refs, err := decodeContainerReferences(data)
	if err != nil {
		s.logger.Warn("dropping malformed container payload", zap.Error(err))
		return
	}

	var pending []<-chan struct{}
	s.mu.Lock()
	for _, ref := range refs {
		if current, ok := s.backingVersions[ref.ID]; ok && current.Dominates(ref.Version) {
			continue
		}
		pending = append(pending, s.waitQueue.Enqueue(ref, ref.Version))
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		s.notifier.Broadcast(wire.ProxyMessage{Type: wire.MessageModelUpdate, Model: data}, 0)
		return
	}

	go func() {
		for _, done := range pending {
			<-done
		}
		s.notifier.Broadcast(wire.ProxyMessage{Type: wire.MessageModelUpdate, Model: data}, 0)
	}()
}

// decodeContainerReferences extracts the References a driver-delivered
// container snapshot points at. It round-trips through JSON so the same
// logic handles both the literal Go value a MemoryDriver hands back
// in-process and the fully-generic map a NATS or Redis driver decodes
// off the wire — Collection.GetData()'s Live entries carry an opaque
// Value that is a wire.Reference in the former case and an
// already-JSON-decoded map in the latter.
func decodeContainerReferences(data interface{}) ([]wire.Reference, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var snapshot struct {
		Live map[string]struct {
			Value json.RawMessage
		}
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}

	refs := make([]wire.Reference, 0, len(snapshot.Live))
	for id, entry := range snapshot.Live {
		var ref wire.Reference
		if err := json.Unmarshal(entry.Value, &ref); err != nil {
			continue
		}
		if ref.ID == "" {
			ref.ID = id
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *ReferenceModeStore) onBackingDriverMessage(data interface{}, version crdt.VersionVector) {
	s.logger.Debug("backing driver delivered update", zap.Any("version", version))
}

func (s *ReferenceModeStore) containerView() interface{} {
	return s.container.GetParticleView()
}

// Idle reports whether the store has no outstanding waits and no
// writes awaiting retry — the condition particles can poll before
// assuming a round of changes has fully settled.
func (s *ReferenceModeStore) Idle() bool {
	return s.waitQueue.Idle() && s.retries.Idle()
}

// FlushRetries re-attempts every write the container and backing
// drivers previously rejected. It is meant to be called periodically
// by a background worker, not from the dispatch loop, so it takes
// s.mu itself rather than relying on single-goroutine dispatch.
func (s *ReferenceModeStore) FlushRetries(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backingDriver != nil && s.retries.HasPending(s.backingKey.String()) {
		ops := s.retries.Drain(s.backingKey.String())
		byEntity := make(map[string][]crdt.Operation)
		for _, op := range ops {
			byEntity[op.ID] = append(byEntity[op.ID], op)
		}
		for id, entityOps := range byEntity {
			entity := s.backing[id]
			if entity == nil {
				continue
			}
			sendStart := time.Now()
			ok, err := s.backingDriver.Send(ctx, entity.GetData(), s.localClock.Clone())
			s.recordDriverSend(s.backingKey.String(), ok, time.Since(sendStart))
			if err != nil || !ok {
				if err != nil {
					s.logger.Error("retry flush failed", zap.String("key", s.backingKey.String()), zap.Error(err))
				}
				for _, op := range entityOps {
					s.retries.Record(s.backingKey.String(), op)
				}
			}
		}
	}

	if s.containerDriver != nil && s.retries.HasPending(s.containerKey.String()) {
		ops := s.retries.Drain(s.containerKey.String())
		sendStart := time.Now()
		ok, err := s.containerDriver.Send(ctx, s.container.GetData(), s.localClock.Clone())
		s.recordDriverSend(s.containerKey.String(), ok, time.Since(sendStart))
		if err != nil || !ok {
			if err != nil {
				s.logger.Error("retry flush failed", zap.String("key", s.containerKey.String()), zap.Error(err))
			}
			for _, op := range ops {
				s.retries.Record(s.containerKey.String(), op)
			}
		}
	}
}

// Close stops the dispatch loop and closes both drivers.
func (s *ReferenceModeStore) Close() error {
	s.once.Do(func() { close(s.done) })

	var firstErr error
	if s.containerDriver != nil {
		if err := s.containerDriver.Close(); err != nil {
			firstErr = err
		}
	}
	if s.backingDriver != nil {
		if err := s.backingDriver.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
