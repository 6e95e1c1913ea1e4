// Package queue runs background workers that poll store state on a
// timer, grounded on the teacher's internal/queue consumers: a
// Start(ctx)/Stop() type running its loop on its own goroutine behind a
// sync.WaitGroup, stopped by closing a context.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/store"
)

// RetryWorker periodically asks a ReferenceModeStore to re-attempt
// writes its drivers previously rejected, per spec.md §4.C's
// send-retry rule. cmd/worker drives one of these per store instance.
type RetryWorker struct {
	store    *store.ReferenceModeStore
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetryWorker constructs a RetryWorker flushing s's retry ledger
// every interval.
func NewRetryWorker(s *store.ReferenceModeStore, interval time.Duration, logger *zap.Logger) *RetryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryWorker{
		store:    s,
		interval: interval,
		logger:   logger.Named("retry_worker"),
	}
}

// Start launches the polling loop. It returns immediately.
func (w *RetryWorker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

func (w *RetryWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logger.Debug("flushing retry ledger")
			w.store.FlushRetries(ctx)
		}
	}
}

// Stop cancels the polling loop and waits for it to exit.
func (w *RetryWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
