package drivers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// Build constructs the container and backing store.Driver pair
// cfg.Driver.Backend names, so cmd/api and cmd/worker share one
// deployment-mode switch instead of duplicating it.
func Build(ctx context.Context, cfg *config.Config, containerKey, backingKey wire.StorageKey, logger *zap.Logger) (store.Driver, store.Driver, error) {
	switch cfg.Driver.Backend {
	case "", "memory":
		return NewMemoryDriver(containerKey, logger), NewMemoryDriver(backingKey, logger), nil

	case "postgres-redis":
		containerDriver, err := NewPostgresDriver(ctx, cfg.Postgres, containerKey, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("drivers: build postgres container driver: %w", err)
		}
		backingDriver, err := NewRedisDriver(ctx, cfg.Redis, backingKey, logger)
		if err != nil {
			containerDriver.Close()
			return nil, nil, fmt.Errorf("drivers: build redis backing driver: %w", err)
		}
		return containerDriver, backingDriver, nil

	case "nats":
		containerDriver, err := NewNATSDriver(cfg.NATS, containerKey, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("drivers: build nats container driver: %w", err)
		}
		backingDriver, err := NewNATSDriver(cfg.NATS, backingKey, logger)
		if err != nil {
			containerDriver.Close()
			return nil, nil, fmt.Errorf("drivers: build nats backing driver: %w", err)
		}
		return containerDriver, backingDriver, nil

	default:
		return nil, nil, fmt.Errorf("drivers: unknown backend %q", cfg.Driver.Backend)
	}
}
