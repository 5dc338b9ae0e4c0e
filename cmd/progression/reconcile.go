package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progression-engine/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/progression-engine/pkg/logger"
)

var reconcileBatch int

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Backfill missing unlock audit rows once and exit",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().IntVar(&reconcileBatch, "batch", 0, "Rows per batch (default: RECONCILE_BATCH_SIZE)")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)
	defer log.Sync()

	rt, err := bootstrap(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	batch := cfg.Reconcile.BatchSize
	if reconcileBatch > 0 {
		batch = reconcileBatch
	}

	job := jobs.NewReconcileAuditJob(rt.service, batch, log)
	if err := job.Run(cmd.Context()); err != nil {
		return err
	}

	stats, _ := job.LastRunStats()
	log.Info("reconcile finished",
		logger.Int("backfilled", stats.Backfilled),
		logger.Int("batches", stats.Batches),
		logger.Latency(stats.Duration),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d audit row(s)\n", stats.Backfilled)
	return nil
}
