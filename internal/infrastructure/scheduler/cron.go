package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"Briefcast/internal/ports"
)

// CronScheduler triggers briefing runs on a cron expression in the
// configured timezone.
type CronScheduler struct {
	spec string
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from a standard cron expression.
func NewCronScheduler(spec string, loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{
		spec: spec,
		cron: cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the job and begins the cron loop.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if _, err := c.cron.AddFunc(c.spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}
	c.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for a running job bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
