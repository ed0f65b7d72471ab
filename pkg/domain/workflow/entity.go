// Package workflow defines the workflow and job domain entities for the
// branch-aware scheduler: a workflow is a tenant-owned DAG of jobs, each job
// carrying a branch key that serializes execution within the tenant.
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Workflow represents a user-submitted DAG of jobs.
//
// Status and progress are derived from the jobs on read; only the lifecycle
// timestamps are stored. Job order is preserved for display, scheduling does
// not depend on it.
type Workflow struct {
	WorkflowID string
	TenantID   string
	Name       string
	Jobs       []*Job

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// New creates a workflow from a validated submission spec. Job and workflow
// records start in PENDING with zero progress.
func New(tenantID string, spec *Spec) *Workflow {
	now := time.Now().UTC()
	w := &Workflow{
		WorkflowID: uuid.NewString(),
		TenantID:   tenantID,
		Name:       spec.Name,
		CreatedAt:  now,
	}
	w.Jobs = make([]*Job, 0, len(spec.Jobs))
	for _, js := range spec.Jobs {
		deps := make([]string, len(js.DependsOn))
		copy(deps, js.DependsOn)
		w.Jobs = append(w.Jobs, &Job{
			JobID:      js.JobID,
			WorkflowID: w.WorkflowID,
			TenantID:   tenantID,
			Type:       js.JobType,
			Branch:     js.Branch,
			ImagePath:  js.ImagePath,
			DependsOn:  deps,
			Status:     StatusPending,
			CreatedAt:  now,
		})
	}
	return w
}

// Job returns the job with the given id, or nil.
func (w *Workflow) Job(jobID string) *Job {
	for _, j := range w.Jobs {
		if j.JobID == jobID {
			return j
		}
	}
	return nil
}

// Status derives the workflow status from its jobs.
//
// PENDING until any job leaves PENDING; RUNNING while work remains; once all
// jobs are terminal, FAILED if any job failed, SUCCEEDED otherwise
// (cancelled jobs do not fail the workflow on their own — a cascade marks
// their dependents FAILED explicitly).
func (w *Workflow) Status() Status {
	if len(w.Jobs) == 0 {
		return StatusPending
	}
	allPending := true
	allTerminal := true
	anyFailed := false
	for _, j := range w.Jobs {
		if j.Status != StatusPending {
			allPending = false
		}
		if !j.Status.IsTerminal() {
			allTerminal = false
		}
		if j.Status == StatusFailed {
			anyFailed = true
		}
	}
	switch {
	case allPending:
		return StatusPending
	case !allTerminal:
		return StatusRunning
	case anyFailed:
		return StatusFailed
	default:
		return StatusSucceeded
	}
}

// Progress derives the workflow progress as the arithmetic mean of its
// jobs' progress values.
func (w *Workflow) Progress() float64 {
	if len(w.Jobs) == 0 {
		return 0
	}
	var total float64
	for _, j := range w.Jobs {
		total += j.Progress
	}
	return total / float64(len(w.Jobs))
}

// JobsCompleted counts jobs in a terminal status.
func (w *Workflow) JobsCompleted() int {
	n := 0
	for _, j := range w.Jobs {
		if j.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// ActiveJobIDs returns the ids of currently running jobs.
func (w *Workflow) ActiveJobIDs() []string {
	ids := make([]string, 0)
	for _, j := range w.Jobs {
		if j.Status == StatusRunning {
			ids = append(ids, j.JobID)
		}
	}
	return ids
}

// Clone returns a deep copy of the workflow and all its jobs.
func (w *Workflow) Clone() *Workflow {
	c := &Workflow{
		WorkflowID: w.WorkflowID,
		TenantID:   w.TenantID,
		Name:       w.Name,
		CreatedAt:  w.CreatedAt,
		StartedAt:  cloneTime(w.StartedAt),
		FinishedAt: cloneTime(w.FinishedAt),
	}
	c.Jobs = make([]*Job, len(w.Jobs))
	for i, j := range w.Jobs {
		c.Jobs[i] = j.Clone()
	}
	return c
}
