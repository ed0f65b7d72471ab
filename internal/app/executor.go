package app

import (
	"context"
	"fmt"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
)

// ProgressSink reports executor progress back to the scheduler. Progress is
// a fraction in [0, 1]; pass a negative tile count to leave it unreported.
// The sink is safe to call from any executor goroutine: updates are
// marshalled back to the scheduler loop as events, never applied directly.
type ProgressSink func(progress float64, tilesProcessed, tilesTotal int)

// Executor performs the actual work for one job type. The scheduler never
// interprets the result beyond the outcome variant: a nil error with a
// result path means SUCCEEDED, a non-nil error means FAILED with the
// error's text as the job's error message.
type Executor interface {
	Execute(ctx context.Context, job *workflow.Job, report ProgressSink) (resultPath string, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *workflow.Job, report ProgressSink) (string, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, job *workflow.Job, report ProgressSink) (string, error) {
	return f(ctx, job, report)
}

// ExecutorRegistry is the fixed dispatch table keyed by job type.
type ExecutorRegistry struct {
	executors map[workflow.JobType]Executor
}

// NewExecutorRegistry creates an empty dispatch table.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[workflow.JobType]Executor)}
}

// Register binds an executor to a job type.
func (r *ExecutorRegistry) Register(jobType workflow.JobType, e Executor) {
	r.executors[jobType] = e
}

// Lookup resolves the executor for a job type.
func (r *ExecutorRegistry) Lookup(jobType workflow.JobType) (Executor, error) {
	e, ok := r.executors[jobType]
	if !ok {
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("no executor registered for job type %q", jobType), shared.ErrValidation)
	}
	return e, nil
}

// Types returns the registered job types.
func (r *ExecutorRegistry) Types() []workflow.JobType {
	types := make([]workflow.JobType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}
