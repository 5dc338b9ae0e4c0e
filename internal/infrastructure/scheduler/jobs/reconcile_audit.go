// Package jobs contains the scheduled jobs of the progression engine.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alem-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AUDIT JOB
// ══════════════════════════════════════════════════════════════════════════════

// AuditReconciler backfills audit rows for unlocks recorded on profiles.
// It returns how many rows it wrote.
type AuditReconciler interface {
	Reconcile(ctx context.Context, limit int) (int, error)
}

// ReconcileAuditJob repairs the unlock audit after best-effort appends failed.
// Audit rows are unique per (user, achievement), so reruns are harmless.
type ReconcileAuditJob struct {
	reconciler AuditReconciler
	log        *logger.Logger
	batchSize  int

	lastRunStats atomic.Value // ReconcileStats
}

// ReconcileStats describes one run.
type ReconcileStats struct {
	Backfilled int
	Batches    int
	Duration   time.Duration
}

// NewReconcileAuditJob creates the job. batchSize bounds each pass.
func NewReconcileAuditJob(reconciler AuditReconciler, batchSize int, log *logger.Logger) *ReconcileAuditJob {
	if batchSize <= 0 {
		batchSize = 500
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileAuditJob{
		reconciler: reconciler,
		log:        log.With(logger.Component("reconcile-audit")),
		batchSize:  batchSize,
	}
}

// Name implements scheduler.Job.
func (j *ReconcileAuditJob) Name() string { return "reconcile_unlock_audit" }

// Description implements scheduler.Job.
func (j *ReconcileAuditJob) Description() string {
	return "Backfills achievement_unlocks rows missing for profile unlocks"
}

// maxBatches caps one run so a large backlog cannot hold the job forever.
const maxBatches = 20

// Run implements scheduler.Job. It keeps taking batches until a batch comes
// back short.
func (j *ReconcileAuditJob) Run(ctx context.Context) error {
	start := time.Now()
	stats := ReconcileStats{}

	for stats.Batches < maxBatches {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.reconciler.Reconcile(ctx, j.batchSize)
		stats.Batches++
		stats.Backfilled += n
		if err != nil {
			stats.Duration = time.Since(start)
			j.lastRunStats.Store(stats)
			return err
		}
		if n < j.batchSize {
			break
		}
	}

	stats.Duration = time.Since(start)
	j.lastRunStats.Store(stats)

	if stats.Backfilled > 0 {
		j.log.Info("unlock audit backfilled",
			logger.Int("rows", stats.Backfilled),
			logger.Int("batches", stats.Batches),
			logger.Latency(stats.Duration),
		)
	}
	return nil
}

// LastRunStats returns the stats of the previous run.
func (j *ReconcileAuditJob) LastRunStats() (ReconcileStats, bool) {
	v, ok := j.lastRunStats.Load().(ReconcileStats)
	return v, ok
}
