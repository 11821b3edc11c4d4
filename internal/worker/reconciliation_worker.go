package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"go.uber.org/zap"
)

const defaultInterval = time.Hour

// Reconciler performs one ledger integrity pass.
type Reconciler interface {
	Run(ctx context.Context) (*service.ReconciliationReport, error)
}

// ReconciliationWorker runs periodic ledger integrity checks.
type ReconciliationWorker struct {
	reconciler Reconciler
	interval   time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

// NewReconciliationWorker constructs a worker with an hourly interval.
func NewReconciliationWorker(reconciler Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		reconciler: reconciler,
		interval:   defaultInterval,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs reconciliation at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	defer close(w.done)
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function that waits
// for the loop to exit.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return func() {
		w.Stop()
		<-w.done
	}
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	report, err := w.reconciler.Run(ctx)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return
	}
	outcome := "balanced"
	if report.InvalidBalanceAccounts > 0 {
		outcome = "imbalanced"
	}
	observability.IncrementWorkerRun("reconciliation", outcome)
}
