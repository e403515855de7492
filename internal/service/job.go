package service

import (
	"context"
	"fmt"
)

type Dispatcher interface {
	Dispatch(ctx context.Context) (*DispatchResult, error)
}

type MaintenanceRunner interface {
	Run(ctx context.Context) string
}

// JobResult is what one scheduler trigger reports back.
type JobResult struct {
	Newsletter  *DispatchResult
	Maintenance string
}

// NewsletterJob is the unit of work behind every scheduler trigger: one
// dispatch invocation followed by maintenance.
type NewsletterJob struct {
	dispatcher  Dispatcher
	maintenance MaintenanceRunner
}

func NewNewsletterJob(dispatcher Dispatcher, maintenance MaintenanceRunner) (*NewsletterJob, error) {
	if dispatcher == nil || maintenance == nil {
		return nil, fmt.Errorf("dispatcher and maintenance are required")
	}
	return &NewsletterJob{dispatcher: dispatcher, maintenance: maintenance}, nil
}

// Run reports a dispatch failure as an error; maintenance only ever adds text.
func (j *NewsletterJob) Run(ctx context.Context) (*JobResult, error) {
	result, err := j.dispatcher.Dispatch(ctx)
	if err != nil {
		return nil, err
	}

	return &JobResult{
		Newsletter:  result,
		Maintenance: j.maintenance.Run(ctx),
	}, nil
}
