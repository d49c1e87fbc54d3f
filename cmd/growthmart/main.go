package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/growthmart/internal/cohort"
	corecfg "github.com/aevon-lab/growthmart/internal/core/config"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage/postgres"
	"github.com/aevon-lab/growthmart/internal/ingestion"
	"github.com/aevon-lab/growthmart/internal/mart"
	"github.com/aevon-lab/growthmart/internal/metrics"
	"github.com/aevon-lab/growthmart/internal/migrations"
	"github.com/aevon-lab/growthmart/internal/pipeline"
	"github.com/aevon-lab/growthmart/internal/server"
	"github.com/aevon-lab/growthmart/internal/staging"
	"github.com/aevon-lab/growthmart/internal/validate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "growthmart.yaml", "Path to configuration file")
	runOnce := flag.Bool("once", false, "Run the pipeline once and exit")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"server", cfg.Server,
		"pipeline", cfg.Pipeline,
		"cost_model", cfg.CostModel.Fingerprint)

	interval, err := cfg.Pipeline.IntervalDuration()
	if err != nil {
		slog.Error("Invalid pipeline interval", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := dbAdapter.Prepare(); err != nil {
		slog.Error("Failed to prepare storage", "error", err)
		os.Exit(1)
	}

	db := dbAdapter.DB()
	stagingStore := postgres.NewStagingAdapter(db)
	martStore := postgres.NewMartAdapter(db)
	cohortStore := postgres.NewCohortAdapter(db)
	jobStore := postgres.NewJobAdapter(db)

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	// 4. Pipeline stages
	costs := cfg.CostModel
	captureSvc := ingestion.NewService(dbAdapter, cfg.Server.MaxBodySizeMB)
	runner := pipeline.NewRunner(pipeline.Stages{
		Capture:   captureSvc,
		Normalize: staging.NewNormalizer(dbAdapter, stagingStore, costs),
		Build:     mart.NewBuilder(stagingStore, martStore, costs),
		Cohorts:   cohort.NewEngine(martStore, cohortStore, costs.AssumedMarginRate),
		Validate:  validate.NewValidator(martStore, cohortStore),
	}, jobStore, pipelineMetrics, cfg.Pipeline.JobName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce {
		run, err := runner.Run(ctx, nil)
		if err != nil {
			slog.Error("Pipeline run failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Pipeline run complete", "run_id", run.ID, "status", run.Status)
		if run.Status != model.JobSuccess {
			os.Exit(2)
		}
		return
	}

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode, registry)
	captureSvc.RegisterRoutes(srv.Engine)
	pipeline.NewHandler(runner, jobStore, cfg.Server.MaxBodySizeMB).RegisterRoutes(srv.Engine)

	// 6. Start Services
	if cfg.Pipeline.Enabled {
		scheduler := pipeline.NewScheduler(interval, runner)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Pipeline scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
