package usecase

import (
	"context"
	"log/slog"
	"time"

	"TrendCurator/internal/ports"
)

// Runner is anything that performs one pipeline run.
type Runner interface {
	Run(ctx context.Context) (RunResult, error)
}

// DailyRun binds a trigger source to the pipeline. Give it the same SingleFlight as any
// other trigger so a scheduled run never overlaps an on-demand one.
type DailyRun struct {
	driver     ports.Scheduler
	runner     Runner
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewDailyRun(driver ports.Scheduler, runner Runner, runTimeout time.Duration, logger *slog.Logger) *DailyRun {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DailyRun{driver: driver, runner: runner, runTimeout: runTimeout, logger: logger}
}

func (d *DailyRun) Start(ctx context.Context) error {
	if d.driver == nil || d.runner == nil {
		return nil
	}
	return d.driver.Start(ctx, func(trigger time.Time) { d.trigger(ctx, trigger) })
}

func (d *DailyRun) trigger(ctx context.Context, at time.Time) {
	if d.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.runTimeout)
		defer cancel()
	}

	res, err := d.runner.Run(ctx)
	if err != nil {
		d.logger.Error("scheduled run failed", "trigger", at, "run_id", res.RunID, "stage", res.Stage, "error", err)
		return
	}
	d.logger.Info("scheduled run done", "trigger", at, "run_id", res.RunID, "recommendations", len(res.Recommendations))
}

func (d *DailyRun) Stop(ctx context.Context) error {
	if d.driver == nil {
		return nil
	}
	return d.driver.Stop(ctx)
}
