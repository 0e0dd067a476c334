/**
 * @description
 * Cron scheduler for the periodic escalation sweep.
 */
package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs one escalation sweep.
type Sweeper interface {
	RunEscalationSweep(ctx context.Context) (*SweepResult, error)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	logger   *zap.Logger
	schedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(sweeper Sweeper, logger *zap.Logger, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		logger:   logger,
		schedule: schedule,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunSweep); err != nil {
		s.logger.Error("failed to schedule escalation sweep", zap.String("schedule", s.schedule), zap.Error(err))
		return err
	}
	s.logger.Info("scheduled escalation sweep", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// RunSweep is the cron job body.
func (s *Scheduler) RunSweep() {
	s.logger.Info("starting escalation sweep job")
	if _, err := s.sweeper.RunEscalationSweep(context.Background()); err != nil {
		s.logger.Error("escalation sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("escalation sweep job finished")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
