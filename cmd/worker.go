package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kidsafe/access-management/internal/auth"
	authPostgres "github.com/kidsafe/access-management/internal/auth/postgres"
	"github.com/kidsafe/access-management/internal/core/events"
	"github.com/kidsafe/access-management/internal/gamesession"
	sessionPostgres "github.com/kidsafe/access-management/internal/gamesession/postgres"
	"github.com/kidsafe/access-management/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers: credential sweeps, event bus monitoring.`,
}

// Sweep worker command
var sweepWorkerCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Start the credential sweep worker",
	Long:  `Periodically deactivate expired game sessions and delete expired or stale refresh credentials`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

// Event Bus worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus and log grant and session events`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var sweepIntervalOverride time.Duration

func startSweepWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithConfig(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	sqlDB, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init db: %v\n", err)
		os.Exit(1)
	}
	gormDB, err := initGorm(sqlDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init gorm: %v\n", err)
		os.Exit(1)
	}

	interval := config.Sweep.Interval
	if sweepIntervalOverride > 0 {
		interval = sweepIntervalOverride
	}

	signer := auth.NewSigner(config.Security.TokenSecret)
	tokenGen := auth.NewTokenGenerator(signer, config.Security.AccessTokenTTL)
	authService := auth.NewService(authPostgres.NewRepository(gormDB), tokenGen, config.Security.BCryptCost, config.Security.RefreshTokenTTL)

	eventBus := events.NewEventBus(lg)
	sessionService := gamesession.NewService(sessionPostgres.NewRepository(gormDB), nil, nil, eventBus, lg, config.Security.GameSessionTTL)

	lg.Info("starting sweep worker",
		"interval", interval,
		"stale_refresh_age", config.Sweep.StaleRefreshAge)

	runSweep := func() {
		now := time.Now()

		if n, err := sessionService.DeactivateExpiredSessions(); err != nil {
			lg.Error("session deactivation sweep failed", "error", err)
		} else if n > 0 {
			lg.Info("deactivated expired game sessions", "count", n)
		}

		if n, err := sessionService.PurgeExpiredSessions(now.Add(-config.Security.GameSessionTTL)); err != nil {
			lg.Error("session purge sweep failed", "error", err)
		} else if n > 0 {
			lg.Info("purged expired game sessions", "count", n)
		}

		if n, err := authService.SweepExpiredRefreshCredentials(now); err != nil {
			lg.Error("refresh credential expiry sweep failed", "error", err)
		} else if n > 0 {
			lg.Info("deleted expired refresh credentials", "count", n)
		}

		if n, err := authService.SweepStaleRefreshCredentials(now.Add(-config.Sweep.StaleRefreshAge)); err != nil {
			lg.Error("refresh credential staleness sweep failed", "error", err)
		} else if n > 0 {
			lg.Info("deleted stale refresh credentials", "count", n)
		}
	}

	// run once at startup so a long interval never delays the first pass
	runSweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("sweep worker is running. Press Ctrl+C to stop.")

	for {
		select {
		case <-ticker.C:
			runSweep()
		case sig := <-sigChan:
			lg.Info("received signal, shutting down sweep worker", "signal", sig)
			if err := sqlDB.Close(); err != nil {
				lg.Error("database close error", "error", err)
			}
			lg.Info("sweep worker shutdown complete")
			return
		}
	}
}

func startEventWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithConfig(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	eventBus := events.NewEventBus(lg)

	for _, eventType := range []string{
		events.EventGrantAdded,
		events.EventGrantRemoved,
		events.EventPrimaryTransfer,
		events.EventSessionIssued,
		events.EventSessionEnded,
	} {
		eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			lg.Info("received access event",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"payload", event.Payload())
			return nil
		})
	}

	lg.Info("event bus worker started. Waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("event bus is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	lg.Info("received signal, shutting down event bus", "signal", sig)
	lg.Info("event bus shutdown complete")
}

func init() {
	sweepWorkerCmd.Flags().DurationVar(&sweepIntervalOverride, "interval", 0, "Sweep interval (overrides config)")

	workerCmd.AddCommand(sweepWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
