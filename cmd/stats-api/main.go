package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pollwise/acdash/internal/api"
	"github.com/pollwise/acdash/internal/cache"
	"github.com/pollwise/acdash/internal/config"
	"github.com/pollwise/acdash/internal/db"
	"github.com/pollwise/acdash/internal/export"
	"github.com/pollwise/acdash/internal/logging"
	"github.com/pollwise/acdash/internal/metrics"
	"github.com/pollwise/acdash/internal/model"
	"github.com/pollwise/acdash/internal/registry"
	"github.com/pollwise/acdash/internal/shard"
	"github.com/pollwise/acdash/internal/stats"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "refresh" {
		runRefresh(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations/core", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("stats-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.CoreDatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tenant registry")
	}
	logger.Info().Int("constituencies", reg.Len()).Msg("tenant registry loaded")

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics("core", corePool)

	router := shard.NewPgxRouter(reg, logger)
	defer router.Close()

	store := stats.NewStore(corePool)
	computer := stats.NewComputer(router, logger)
	svc := stats.NewQueryService(reg, cache.NewTTL[*model.Snapshot](), store, computer,
		logger, cfg.CacheTTL, cfg.SnapshotMaxAge)

	var exporter stats.SnapshotExporter
	if cfg.S3Enabled() {
		exporter = export.NewS3Exporter(export.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("snapshot export enabled")
	}

	refresher := stats.NewRefresher(reg, computer, store, exporter, logger,
		cfg.RefreshInterval, cfg.RefreshConcurrency)
	go refresher.Run(ctx)

	srv := api.NewServer(logger, svc, corePool)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting stats API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

// runRefresh executes a single refresh cycle and exits, for cron-style
// operation or warming the snapshot store before first deploy.
func runRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Minute, "Abort the cycle after this long")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate("refresh"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tenant registry")
	}

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()

	router := shard.NewPgxRouter(reg, logger)
	defer router.Close()

	store := stats.NewStore(corePool)
	computer := stats.NewComputer(router, logger)

	var exporter stats.SnapshotExporter
	if cfg.S3Enabled() {
		exporter = export.NewS3Exporter(export.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
	}

	refresher := stats.NewRefresher(reg, computer, store, exporter, logger,
		cfg.RefreshInterval, cfg.RefreshConcurrency)
	refresher.RunCycle(ctx)
}
