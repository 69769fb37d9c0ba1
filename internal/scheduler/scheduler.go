// Package scheduler runs the periodic billing jobs: the daily recurring
// charge sweep, the expiration sweep and the expiring-soon warnings.
package scheduler

import (
	"context"
	"log"
	"os"

	"github.com/robfig/cron/v3"
)

const (
	// Daily at 09:00 UTC, when cards are most likely topped up.
	autoChargeSchedule = "0 9 * * *"
	// Every 15 minutes keeps the visible active flag reasonably current.
	expireSchedule = "*/15 * * * *"
	// Daily at 10:00 UTC.
	warnSchedule = "0 10 * * *"
)

type Scheduler struct {
	cron   *cron.Cron
	sweeps *Sweeps
}

func NewScheduler(sweeps *Sweeps) *Scheduler {
	cronLogger := cron.PrintfLogger(log.New(os.Stderr, "cron: ", log.LstdFlags))
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger))),
		sweeps: sweeps,
	}
}

// Start registers the jobs and kicks off an immediate run of each sweep,
// so a process restart never pushes renewals a full day out.
func (s *Scheduler) Start() {
	register := func(spec, name string, job func()) {
		if _, err := s.cron.AddFunc(spec, job); err != nil {
			log.Printf("Scheduler: failed to register %s job: %v", name, err)
			return
		}
		log.Printf("Scheduler: registered %s job (%s)", name, spec)
	}
	register(autoChargeSchedule, "auto-charge", s.sweeps.AutoCharge)
	register(expireSchedule, "expiration", s.sweeps.Expire)
	register(warnSchedule, "warning", s.sweeps.Warn)

	go func() {
		s.sweeps.Expire()
		s.sweeps.AutoCharge()
		s.sweeps.Warn()
	}()

	s.cron.Start()
	log.Println("Scheduler started")
}

// Stop halts the cron loop and returns a context that completes when
// running jobs finish.
func (s *Scheduler) Stop() context.Context {
	log.Println("Stopping scheduler...")
	return s.cron.Stop()
}
