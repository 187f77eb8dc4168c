package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mailcove/gatekeeper/pkg/clock"
	"mailcove/gatekeeper/pkg/config"
	"mailcove/gatekeeper/pkg/counter"
	"mailcove/gatekeeper/pkg/ledger"
	"mailcove/gatekeeper/pkg/retry"
	"mailcove/gatekeeper/pkg/server"
	"mailcove/gatekeeper/pkg/telemetry/health"
	"mailcove/gatekeeper/pkg/telemetry/logging"
	"mailcove/gatekeeper/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gatekeeper daemon",
	Long: `Start the gatekeeper daemon with the specified configuration.

The daemon serves the operational endpoints (health probes, metrics),
runs the ledger sweeper on its schedule, and drives the counter store
recovery probe while the in-process fallback is engaged.

Examples:
  # Start with default config
  gatekeeper run

  # Start with custom config
  gatekeeper run --config /etc/mailcove/gatekeeper.yaml

  # Override listen address
  gatekeeper run --listen 0.0.0.0:8091

  # Validate config without starting
  gatekeeper run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the daemon")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Metrics, nil)
	}

	// Counter store: Redis behind the breaker/retry pair, with the
	// in-process fallback for outages.
	remote := counter.NewRedisStore(cfg.Redis)
	local := counter.NewMemoryStore(clock.System)
	store := counter.NewFailoverStore(remote, local, counter.FailoverOptions{
		Breaker: retry.NewCircuitBreaker(retry.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		}, clock.System),
		Retrier: retry.NewExecutor(retry.Config{
			MaxRetries:        cfg.Retry.MaxRetries,
			BaseDelay:         cfg.Retry.BaseDelay,
			MaxDelay:          cfg.Retry.MaxDelay,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
			Retryable:         counter.IsTransient,
		}),
		ProbeInterval: cfg.Failover.ProbeInterval,
		Logger:        logger,
		Metrics:       collector,
	})
	defer store.Close()
	go store.RunProbe(ctx)
	fmt.Printf("✓ Counter store initialized (redis %s)\n", cfg.Redis.Address)

	led, err := ledger.NewSQLite(cfg.Ledger, clock.System, logger)
	if err != nil {
		return fmt.Errorf("failed to open quota ledger: %w", err)
	}
	defer led.Close()
	fmt.Printf("✓ Quota ledger opened (%s)\n", cfg.Ledger.Path)

	sweeper := ledger.NewSweeper(led, cfg.Ledger, logger)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ledger sweeper: %w", err)
	}
	defer sweeper.Stop()
	if next := sweeper.NextRun(); next != nil {
		logger.Debug("ledger sweeper scheduled", "next_sweep", next)
	}

	// Warn about config drift; the tier table is immutable at runtime.
	if watcher, err := config.NewWatcher(cfgFile, logger); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		go func() {
			if err := watcher.Watch(ctx, nil); err != nil && ctx.Err() == nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	checker := health.New(2 * time.Second)
	checker.Register("redis", func(ctx context.Context) error {
		return store.Ping(ctx)
	})
	checker.Register("ledger", func(ctx context.Context) error {
		return led.Ping(ctx)
	})

	srv := server.New(cfg.Server, checker, collector, Version, GitCommit, logger)

	fmt.Printf("✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}

	return srv.Start(ctx)
}
