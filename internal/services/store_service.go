// Package services is the thin layer between transports
// (internal/api) and the store/recipe packages,
// grounded on the teacher's service-layer shape: a struct holding its
// dependencies and a logger, exposing one method per transport-facing
// operation, with no transport-specific code of its own.
package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/crdt"
	arcserrors "github.com/arcs-project/arcs-core/internal/errors"
	"github.com/arcs-project/arcs-core/internal/metrics"
	"github.com/arcs-project/arcs-core/internal/recipe"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// StoreService exposes a ReferenceModeStore's operations to the REST
// and WebSocket transports.
type StoreService struct {
	store  *store.ReferenceModeStore
	logger *zap.Logger
}

// NewStoreService wraps s for transport consumption.
func NewStoreService(s *store.ReferenceModeStore, logger *zap.Logger) *StoreService {
	return &StoreService{store: s, logger: logger.Named("store_service")}
}

// PostOperations stamps ops with entity id (an op left with its own,
// differing id is rejected rather than silently overwritten) and
// enqueues them for the store's dispatch loop.
func (svc *StoreService) PostOperations(ctx context.Context, id string, ops []crdt.Operation) error {
	stamped := make([]crdt.Operation, len(ops))
	for i, op := range ops {
		if op.ID != "" && op.ID != id {
			return arcserrors.NewSchemaViolationError(fmt.Sprintf("operation id %q does not match request id %q", op.ID, id))
		}
		op.ID = id
		stamped[i] = op
	}

	svc.store.Post(wire.ProxyMessage{Type: wire.MessageOperations, Operations: stamped})
	return nil
}

// RequestSync asks the store to resend the current container state,
// excluding the subscriber identified by subscriptionID (0 excludes
// none) from the broadcast, since that caller already has what it
// asked for.
func (svc *StoreService) RequestSync(ctx context.Context, subscriptionID int) error {
	svc.store.Post(wire.ProxyMessage{Type: wire.MessageSyncRequest, ID: subscriptionID})
	return nil
}

// Subscribe opens a model-update subscription and returns its id and
// channel.
func (svc *StoreService) Subscribe() (int, <-chan wire.ProxyMessage) {
	return svc.store.Subscribe()
}

// Idle reports whether the store has no outstanding waits or retries.
func (svc *StoreService) Idle() bool {
	return svc.store.Idle()
}

// RecipeService exposes recipe parsing/normalization/validation to the
// transports, independent of any particular store instance.
type RecipeService struct {
	cfg     config.RecipeConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRecipeService constructs a RecipeService honoring cfg's orphan-slot
// strictness setting.
func NewRecipeService(cfg config.RecipeConfig, m *metrics.Metrics, logger *zap.Logger) *RecipeService {
	return &RecipeService{cfg: cfg, metrics: m, logger: logger.Named("recipe_service")}
}

// Validate reports whether r is structurally valid, without mutating
// or freezing it.
func (svc *RecipeService) Validate(r *recipe.Recipe) bool {
	return r.IsValid()
}

// Normalize freezes r, honoring the configured orphan-slot strictness,
// and returns its canonical textual form and digest.
func (svc *RecipeService) Normalize(r *recipe.Recipe) (canonical string, digest string, err error) {
	start := time.Now()
	ok := false
	defer func() {
		if svc.metrics != nil {
			svc.metrics.RecordRecipeNormalize(ok, time.Since(start))
		}
	}()

	if err := r.CheckOrphanSlots(svc.cfg.StrictOrphanSlots); err != nil {
		return "", "", err
	}
	if err := r.Normalize(); err != nil {
		return "", "", arcserrors.Wrap(err, "recipe normalize failed")
	}
	ok = true
	return r.ToString(), r.Digest(), nil
}

// IsResolved reports whether a frozen recipe has no outstanding
// obligations.
func (svc *RecipeService) IsResolved(r *recipe.Recipe) bool {
	return r.IsResolved()
}
