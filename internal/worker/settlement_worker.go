package worker

import (
	"context"
	"sync"
	"time"

	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/intent"
	"github.com/toluade/factorpool/internal/observability"
	"go.uber.org/zap"
)

// SettlementWorker drives Funded intents to Settled. It sweeps on an
// interval and additionally wakes up when the ledger emits a repayment
// event, so settlement usually lands within one event hop while the sweep
// catches anything the event path missed.
type SettlementWorker struct {
	coordinator *intent.Coordinator
	events      <-chan domain.Event
	interval    time.Duration
	batchSize   int32
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewSettlementWorker constructs a worker with default interval and batch.
func NewSettlementWorker(coordinator *intent.Coordinator, events <-chan domain.Event) *SettlementWorker {
	return &SettlementWorker{
		coordinator: coordinator,
		events:      events,
		interval:    10 * time.Second,
		batchSize:   50,
		stopCh:      make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *SettlementWorker) WithInterval(interval time.Duration) *SettlementWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize updates the sweep batch size.
func (w *SettlementWorker) WithBatchSize(size int32) *SettlementWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks, sweeping until the context is canceled or Stop is called.
func (w *SettlementWorker) Start(ctx context.Context) {
	zap.L().Info("settlement worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("settlement worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("settlement worker stop signal received")
			return
		case ev := <-w.events:
			if repaid, ok := ev.(domain.InvoiceRepaid); ok && repaid.FullyRepaid {
				w.runOnce(ctx)
			}
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SettlementWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SettlementWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// SweepOnce performs a single settlement sweep, useful for tests and
// manual triggering.
func (w *SettlementWorker) SweepOnce(ctx context.Context) (int, error) {
	return w.coordinator.SweepFunded(ctx, w.batchSize)
}

func (w *SettlementWorker) runOnce(ctx context.Context) {
	settled, err := w.coordinator.SweepFunded(ctx, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("settlement", "failed")
		zap.L().Error("settlement sweep failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("settlement", "success")
	if settled > 0 {
		zap.L().Info("settlement sweep completed", zap.Int("settled", settled))
	}
}
