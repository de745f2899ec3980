// Package throttle paces enrichment calls.
package throttle

import (
	"context"
	"time"

	"TrendCurator/internal/ports"
)

// Delay pauses for a fixed duration on every Wait, whatever the previous call took.
type Delay struct {
	every time.Duration
}

var _ ports.Throttle = Delay{}

// NewDelay builds a throttle; a non-positive duration disables waiting.
func NewDelay(every time.Duration) Delay {
	return Delay{every: every}
}

// Wait blocks for the configured delay or until ctx is done.
func (d Delay) Wait(ctx context.Context) error {
	if d.every <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d.every)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
