// Package main provides the worker entry point: it runs a
// ReferenceModeStore with no REST/WebSocket surface, driving only the
// background retry-flush loop against its drivers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/drivers"
	"github.com/arcs-project/arcs-core/internal/metrics"
	"github.com/arcs-project/arcs-core/internal/queue"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	storeMetrics := metrics.New()

	containerKey := wire.StorageKey{Protocol: "arcs", Location: "container/default"}
	backingKey := wire.StorageKey{Protocol: "arcs", Location: "backing/default"}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	containerDriver, backingDriver, err := drivers.Build(ctx, cfg, containerKey, backingKey, logger)
	if err != nil {
		logger.Fatal("failed to build store drivers", zap.Error(err))
	}

	refStore := store.New(store.Config{
		LocalActor:      crdt.Actor(fmt.Sprintf("worker-%d", os.Getpid())),
		ContainerKey:    containerKey,
		BackingKey:      backingKey,
		ContainerDriver: containerDriver,
		BackingDriver:   backingDriver,
		Container:       crdt.NewCollection(),
		NewEntity:       func() *crdt.Entity { return crdt.NewEntity(map[string]crdt.Model{}) },
		InboxSize:       cfg.Store.InboxSize,
		Logger:          logger,
		Metrics:         storeMetrics,
	})
	refStore.Start(ctx)
	defer refStore.Close()

	retryWorker := queue.NewRetryWorker(refStore, cfg.Store.RetryBackoff, logger)
	retryWorker.Start(ctx)

	logger.Info("worker started", zap.String("driver_backend", cfg.Driver.Backend), zap.Duration("retry_interval", cfg.Store.RetryBackoff))

	<-ctx.Done()
	logger.Info("shutting down worker")

	retryWorker.Stop()
	logger.Info("worker exited gracefully")
}
