package usecase

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

const runKey = "run"

// SingleFlight lets at most one run execute at a time across every caller that shares it.
// A caller arriving mid-run joins that run and receives its result, so a day never gets
// two batches.
type SingleFlight struct {
	runner  Runner
	group   singleflight.Group
	pending atomic.Int32
}

func NewSingleFlight(runner Runner) *SingleFlight {
	return &SingleFlight{runner: runner}
}

func (s *SingleFlight) Run(ctx context.Context) (RunResult, error) {
	res, _, err := s.RunShared(ctx)
	return res, err
}

// RunShared is Run that also reports whether the result came from a run started by
// another caller. The leader's ctx governs a shared run.
func (s *SingleFlight) RunShared(ctx context.Context) (RunResult, bool, error) {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	v, err, shared := s.group.Do(runKey, func() (any, error) {
		return s.runner.Run(ctx)
	})
	res, _ := v.(RunResult)
	return res, shared, err
}
