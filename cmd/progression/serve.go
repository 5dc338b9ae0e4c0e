package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/progression-engine/config"
	"github.com/alem-hub/progression-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/progression-engine/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/alem-hub/progression-engine/internal/interface/http"
	"github.com/alem-hub/progression-engine/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the audit reconciler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)
	defer log.Sync()

	log.Info("starting progression engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("store", cfg.Store.Driver),
		logger.String("auth", cfg.Auth.Mode),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DEPENDENCIES
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpCfg.RetryAfter = cfg.HTTP.RetryAfter

	server, err := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		Service:       rt.service,
		Auth:          auth,
		HealthChecker: rt.healthChecker(),
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Reconcile.Enabled {
		schedCfg := scheduler.DefaultSchedulerConfig()
		schedCfg.Logger = log
		schedCfg.JobTimeout = cfg.Reconcile.Timeout

		sched, err = scheduler.NewScheduler(schedCfg)
		if err != nil {
			return err
		}
		job := jobs.NewReconcileAuditJob(rt.service, cfg.Reconcile.BatchSize, log)
		if err := sched.Register(job, cfg.Reconcile.Interval); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if sched != nil {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", logger.Err(err))
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

func newAuthenticator(cfg config.AuthConfig) (httpapi.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeHeader:
		return httpapi.NewHeaderAuthenticator(cfg.UserHeader), nil
	default:
		auth, err := httpapi.NewJWTAuthenticator(cfg.JWTSecret,
			httpapi.WithIssuer(cfg.JWTIssuer),
			httpapi.WithLeeway(cfg.JWTLeeway),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build authenticator: %w", err)
		}
		return auth, nil
	}
}
