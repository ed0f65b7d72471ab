package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// Outcome is a worker's completion report for one job.
type Outcome struct {
	Status       workflow.Status // SUCCEEDED, FAILED or CANCELLED
	ResultPath   string
	ErrorMessage string
}

type poolTask struct {
	job      *workflow.Job // immutable snapshot
	executor Executor
	report   ProgressSink
	done     func(Outcome)
}

// WorkerPool executes up to size jobs concurrently. The pool knows nothing
// about branches or tenants; the scheduler loop gates submissions so that
// at most one job per (tenant, branch) is in flight and the global cap is
// respected, which also guarantees Submit never blocks.
type WorkerPool struct {
	size   int
	tasks  chan poolTask
	logger *logger.Logger
	wg     sync.WaitGroup
}

// NewWorkerPool creates a pool of the given size.
func NewWorkerPool(size int, log *logger.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:   size,
		tasks:  make(chan poolTask, size),
		logger: log,
	}
}

// Start launches the worker goroutines. Workers drain in-flight tasks and
// exit when the context is cancelled.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Wait blocks until all workers have exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Size returns the pool's concurrency bound.
func (p *WorkerPool) Size() int {
	return p.size
}

// Submit hands a job snapshot to the pool. done is invoked exactly once
// with the outcome, from the worker goroutine.
func (p *WorkerPool) Submit(job *workflow.Job, executor Executor, report ProgressSink, done func(Outcome)) {
	p.tasks <- poolTask{job: job, executor: executor, report: report, done: done}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.With("worker", id)

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			task.done(p.run(ctx, log, task))
		}
	}
}

// run executes one task, converting panics and errors into FAILED outcomes.
func (p *WorkerPool) run(ctx context.Context, log *logger.Logger, task poolTask) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("executor panicked",
				"workflow_id", task.job.WorkflowID,
				"job_id", task.job.JobID,
				"panic", rec,
			)
			out = Outcome{
				Status:       workflow.StatusFailed,
				ErrorMessage: fmt.Sprintf("executor panic: %v", rec),
			}
		}
	}()

	resultPath, err := task.executor.Execute(ctx, task.job, task.report)
	if err != nil {
		return Outcome{
			Status:       workflow.StatusFailed,
			ErrorMessage: err.Error(),
		}
	}
	return Outcome{
		Status:     workflow.StatusSucceeded,
		ResultPath: resultPath,
	}
}
