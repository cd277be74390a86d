package worker

import (
	"context"
	"sync"
	"time"

	"github.com/toluade/factorpool/internal/ledger"
	"github.com/toluade/factorpool/internal/observability"
	"go.uber.org/zap"
)

// AuditWorker runs periodic conservation checks over every pool. A breach
// is alarmed, never clamped: outstanding exceeding deposits under normal
// flow is a fatal internal defect that needs a human.
type AuditWorker struct {
	engine   *ledger.Engine
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewAuditWorker constructs a worker with a default hourly interval.
func NewAuditWorker(engine *ledger.Engine) *AuditWorker {
	return &AuditWorker{
		engine:   engine,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the audit interval.
func (w *AuditWorker) WithInterval(interval time.Duration) *AuditWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and audits at the configured interval, running once
// immediately at startup.
func (w *AuditWorker) Start(ctx context.Context) {
	zap.L().Info("conservation audit worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("audit worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("audit worker stop signal received")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *AuditWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *AuditWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RunOnce checks every pool's conservation invariant and refreshes the
// pool gauges. Returns the number of pools in breach.
func (w *AuditWorker) RunOnce(ctx context.Context) int {
	breaches := 0
	for _, snap := range w.engine.Pools() {
		observability.SetPoolGauges(snap.Kind.String(), snap.TotalDeposits, snap.TotalOutstanding)
		if snap.TotalOutstanding > snap.TotalDeposits {
			breaches++
			observability.IncrementConservationBreach(snap.Kind.String())
			zap.L().Error("CRITICAL: pool conservation invariant violated",
				zap.Stringer("pool", snap.Kind),
				zap.Uint64("deposits", snap.TotalDeposits),
				zap.Uint64("outstanding", snap.TotalOutstanding))
		}
	}
	if breaches == 0 {
		observability.IncrementWorkerRun("audit", "success")
		zap.L().Debug("pool conservation verified")
	} else {
		observability.IncrementWorkerRun("audit", "breach")
	}
	return breaches
}
