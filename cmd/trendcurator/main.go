package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"TrendCurator/internal/app"
	"TrendCurator/internal/config"
	"TrendCurator/internal/logging"
)

func main() {
	serve := flag.Bool("serve", false, "run the HTTP API and daily scheduler instead of a single run")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *serve {
		if err := application.Serve(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			application.Close()
			os.Exit(1)
		}
		return
	}

	res, err := application.RunOnce(ctx)
	if err != nil {
		logger.Error("run failed", "run_id", res.RunID, "stage", res.Stage, "recommendations", len(res.Recommendations), "error", err)
		application.Close()
		os.Exit(1)
	}
	logger.Info("run complete", "run_id", res.RunID, "recommendations", len(res.Recommendations), "inserted", res.InsertedCount)
}
