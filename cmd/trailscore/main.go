// Package main is the entry point for the trailscore CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/cmd/trailscore/commands"
	"github.com/bobby-s-dev/ride-or-mud/internal/config"
	"github.com/bobby-s-dev/ride-or-mud/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr so rankings can be piped.
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level.SetLevel(zap.WarnLevel)
	logger, err := zapConfig.Build()
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return 1
	}
	if cfg.ZapLevel() < zap.WarnLevel {
		zapConfig.Level.SetLevel(cfg.ZapLevel())
	}

	aggregator, err := services.NewAggregator(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize services", zap.Error(err))
		return 1
	}
	defer aggregator.Close()

	cli := commands.New(aggregator.Recommender)
	cli.SetArgs(args)
	if err := cli.Execute(ctx); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}
	return 0
}
