package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendCurator/internal/ports"
)

// DailyScheduler fires a job once a day at a fixed wall-clock time.
type DailyScheduler struct {
	hour, minute int
	loc          *time.Location
	now          func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler parses runAt as HH:MM in loc.
func NewDailyScheduler(runAt string, loc *time.Location) (*DailyScheduler, error) {
	hour, minute, err := parseClock(runAt)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{hour: hour, minute: minute, loc: loc, now: time.Now}, nil
}

func parseClock(runAt string) (int, int, error) {
	t, err := time.Parse("15:04", runAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid run time %q: %w", runAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Next returns the first trigger strictly after now.
func (d *DailyScheduler) Next(now time.Time) time.Time {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

// Start runs job on every trigger until ctx is done or Stop is called. Runs never overlap:
// the next trigger is computed after the previous job returns.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	go d.loop(ctx, job, d.stop, d.done)
	return nil
}

func (d *DailyScheduler) loop(ctx context.Context, job func(time.Time), stop, done chan struct{}) {
	defer close(done)
	for {
		now := d.now()
		timer := time.NewTimer(d.Next(now).Sub(now))
		select {
		case t := <-timer.C:
			job(t)
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		}
	}
}

// Stop halts the loop and waits for an in-flight job to return or ctx to expire.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
