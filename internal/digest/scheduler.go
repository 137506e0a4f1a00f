package digest

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler posts the daily digest on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	digest *Digest
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler that posts the digest per the cron spec,
// e.g. "0 9 * * 1-5" for weekday mornings.
func NewScheduler(d *Digest, spec string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   spec,
		digest: d,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.digest.Post(s.ctx); err != nil {
			log.Printf("Daily digest failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Digest scheduler started with spec %q", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("Digest scheduler stopped")
}
