package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Jessir1108/Capta-Tickets/internal/consistency"
)

// Auditor runs one consistency audit.
type Auditor interface {
	Audit(ctx context.Context, opts consistency.AuditOptions) (consistency.AuditResult, error)
}

// AuditWorker runs the consistency audit on a fixed interval.
type AuditWorker struct {
	auditor  Auditor
	interval time.Duration
	opts     consistency.AuditOptions
	logger   *zap.Logger
}

// NewAuditWorker builds a worker.
func NewAuditWorker(auditor Auditor, interval time.Duration, opts consistency.AuditOptions, logger *zap.Logger) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWorker{auditor: auditor, interval: interval, opts: opts, logger: logger}
}

// Run audits immediately and then every interval until ctx is done. Each run
// is bounded by the interval so a slow scan never overlaps the next one.
func (w *AuditWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("audit worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *AuditWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	res, err := w.auditor.Audit(runCtx, w.opts)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return
	default:
		w.logger.Error("consistency audit failed", zap.Int("scanned", res.Scanned), zap.Error(err))
	}
}
