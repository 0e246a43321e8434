// Package main is the entry point for the blotter market data service.
// It seeds the market state from the configured start-of-day curve and
// portfolio, runs the drift simulator as the single writer, and serves
// pull endpoints plus a websocket push stream on top of the shared
// snapshot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/blotter/internal/config"
	"github.com/aristath/blotter/internal/events"
	"github.com/aristath/blotter/internal/market"
	"github.com/aristath/blotter/internal/portfolio"
	"github.com/aristath/blotter/internal/scheduler"
	"github.com/aristath/blotter/internal/server"
	"github.com/aristath/blotter/internal/simulator"
	"github.com/aristath/blotter/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting blotter")

	bus := events.NewBus(log)
	state := market.NewState(log)

	// Seed once with the start-of-day curve and the loaded portfolio.
	// Everything downstream reads from this state; the simulator is its
	// only writer after seeding.
	positions := portfolio.LoadPositions(cfg.PositionsFile, log)
	if err := state.Seed(cfg.Curve, positions); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed market state")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := simulator.New(state, bus, simulator.Config{
		Interval:    cfg.TickInterval,
		Volatility:  cfg.DriftVolatility,
		BucketDrift: cfg.BucketDrift,
	}, log)
	go sim.Run(ctx)

	// Scheduled start-of-day reset, only when a cron spec is configured.
	var sched *scheduler.Scheduler
	if cfg.SODResetSchedule != "" {
		sched = scheduler.New(log)
		if err := sched.AddJob(cfg.SODResetSchedule, scheduler.NewSODResetJob(state, bus, log)); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.SODResetSchedule).Msg("Invalid reset schedule")
		}
		sched.Start()
		log.Info().Str("schedule", cfg.SODResetSchedule).Msg("Scheduled reset enabled")
	}

	srv := server.New(server.Config{
		Log:          log,
		State:        state,
		Bus:          bus,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		TickInterval: cfg.TickInterval,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the simulator and the scheduler before the server so no new
	// snapshots are published while connections drain.
	cancel()
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
