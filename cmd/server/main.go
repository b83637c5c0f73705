package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pdftrack/internal/collector"
	"pdftrack/internal/platform/config"
	"pdftrack/internal/platform/logger"
)

// main runs the collector alone, configured from the environment. The
// pdftrack binary offers the same service through its collect command.
func main() {
	cfg, err := config.CollectorFromEnv()
	if err != nil {
		logger.New("", "").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := collector.Run(ctx, cfg, nil, log); err != nil {
		log.Error("collector stopped", "error", err)
		os.Exit(1)
	}
}
