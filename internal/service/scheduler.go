package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const minSchedulerInterval = time.Minute

type JobRunner interface {
	Run(ctx context.Context) (*JobResult, error)
}

// Scheduler triggers the newsletter job on a fixed interval from inside the
// API process. It is an alternative to the external cron trigger; both may
// run because the dispatch lock keeps invocations single-flight.
type Scheduler struct {
	job      JobRunner
	logger   *zap.Logger
	interval time.Duration
}

func NewScheduler(job JobRunner, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval < minSchedulerInterval {
		interval = minSchedulerInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		job:      job,
		logger:   logger,
		interval: interval,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	result, err := s.job.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled newsletter run failed", zap.Error(err))
		return
	}

	s.logger.Info("scheduled newsletter run finished",
		zap.String("newsletter", result.Newsletter.Message),
		zap.String("maintenance", result.Maintenance),
	)
}
