package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/api"
	"github.com/bobby-s-dev/ride-or-mud/internal/config"
	"github.com/bobby-s-dev/ride-or-mud/internal/scheduler"
	"github.com/bobby-s-dev/ride-or-mud/internal/services"
)

func main() {
	// Initialize logger
	zapConfig := zap.NewProductionConfig()
	logger, _ := zapConfig.Build()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting trail conditions service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	zapConfig.Level.SetLevel(cfg.ZapLevel())

	aggregator, err := services.NewAggregator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer aggregator.Close()

	pruneScheduler, err := scheduler.NewScheduler(aggregator.Cache, cfg.Cache.PruneSchedule, logger)
	if err != nil {
		logger.Fatal("Failed to initialize scheduler", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JSONEncoder:  fiber.DefaultJSONEncoder,
		ErrorHandler: api.ErrorHandler,
	})

	deps := api.Deps{
		Recommender:  aggregator.Recommender,
		Orchestrator: aggregator.Orchestrator,
		Cache:        aggregator.Cache,
		Scheduler:    pruneScheduler,
	}
	if aggregator.Relay != nil {
		deps.Relay = aggregator.Relay
	}
	handler := api.NewHandler(deps, logger)
	api.SetupRoutes(app, handler, cfg.Server.CORSOrigins, logger)

	pruneScheduler.Start()

	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruneScheduler.Stop()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
