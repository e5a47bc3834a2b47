// Package jobs runs the panel's periodic work: dashboard snapshots and
// sweeping idle task boards.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"taskpanel/internal/activity"
	"taskpanel/internal/config"
)

// Sweeper drops state unused for longer than idle.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

type Scheduler struct {
	cron     *cron.Cron
	cfg      config.JobsConfig
	recorder activity.Recorder
	boards   Sweeper
	idle     time.Duration
	log      zerolog.Logger
}

func NewScheduler(cfg config.JobsConfig, recorder activity.Recorder, boards Sweeper, idle time.Duration, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		cfg:      cfg,
		recorder: recorder,
		boards:   boards,
		idle:     idle,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.recorder != nil && s.cfg.SnapshotSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.SnapshotSpec, s.enqueueSnapshot); err != nil {
			return err
		}
	}
	if s.boards != nil && s.cfg.SweepSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.SweepSpec, s.sweepBoards); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs for up to five seconds.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e, err := activity.NewEvent(activity.EventDashboardSnapshot, "", "", nil)
	if err != nil {
		s.log.Error().Err(err).Msg("build snapshot job failed")
		return
	}
	if err := s.recorder.Record(ctx, e); err != nil {
		s.log.Error().Err(err).Msg("enqueue snapshot failed")
	}
}

func (s *Scheduler) sweepBoards() {
	if n := s.boards.Sweep(s.idle); n > 0 {
		s.log.Debug().Int("boards", n).Msg("idle task boards dropped")
	}
}
