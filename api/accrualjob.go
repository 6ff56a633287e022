/*
accrualjob.go - Scheduled accrual runner

PURPOSE:
  Managers accrue lazily when they touch the system, but a manager who never
  logs in would drift. This job runs the batch accrual pass at startup and
  then on a cron schedule so every manager's balance is refreshed soon after
  the year ticks over.

SEE ALSO:
  - leave/accrual.go: the pass itself
*/
package api

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/leave-engine/leave"
)

// AccrualJob wraps the manager accrual pass in a cron scheduler.
type AccrualJob struct {
	Accrual  *leave.AccrualManager
	Schedule string

	cron *cron.Cron
}

func NewAccrualJob(accrual *leave.AccrualManager, schedule string) *AccrualJob {
	return &AccrualJob{Accrual: accrual, Schedule: schedule}
}

// Start runs one pass immediately, then schedules recurring passes.
func (j *AccrualJob) Start(ctx context.Context) error {
	j.runOnce(ctx)

	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.Schedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		j.runOnce(runCtx)
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	log.Printf("[accrual] scheduled manager pass: %q", j.Schedule)
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (j *AccrualJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *AccrualJob) runOnce(ctx context.Context) {
	if err := j.Accrual.RunManagerPass(ctx); err != nil {
		log.Printf("[accrual] manager pass failed: %v", err)
	}
}
