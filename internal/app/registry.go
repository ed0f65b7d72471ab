package app

import (
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
)

// JobRef is the canonical external identity of a job.
type JobRef struct {
	WorkflowID string
	JobID      string
}

// Registry is the single source of truth for workflow and job records,
// indexed by workflow id, (workflow id, job id), and tenant id.
//
// The registry performs no locking of its own: all mutations are funneled
// through the engine's single write path, and readers go through the
// engine's state lock.
type Registry struct {
	workflows map[string]*workflow.Workflow
	byTenant  map[string][]string // tenant id -> workflow ids, insertion order
	jobs      map[JobRef]*workflow.Job
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		workflows: make(map[string]*workflow.Workflow),
		byTenant:  make(map[string][]string),
		jobs:      make(map[JobRef]*workflow.Job),
	}
}

// CreateWorkflow inserts a workflow, failing if the workflow id collides.
func (r *Registry) CreateWorkflow(w *workflow.Workflow) error {
	if _, exists := r.workflows[w.WorkflowID]; exists {
		return shared.NewDomainError("DUPLICATE", "workflow "+w.WorkflowID+" already exists", shared.ErrAlreadyExists)
	}
	r.workflows[w.WorkflowID] = w
	r.byTenant[w.TenantID] = append(r.byTenant[w.TenantID], w.WorkflowID)
	for _, j := range w.Jobs {
		r.jobs[JobRef{WorkflowID: w.WorkflowID, JobID: j.JobID}] = j
	}
	return nil
}

// Workflow returns the live workflow record, or nil.
func (r *Registry) Workflow(workflowID string) *workflow.Workflow {
	return r.workflows[workflowID]
}

// WorkflowsByTenant returns the live workflow records of a tenant in
// submission order.
func (r *Registry) WorkflowsByTenant(tenantID string) []*workflow.Workflow {
	ids := r.byTenant[tenantID]
	out := make([]*workflow.Workflow, 0, len(ids))
	for _, id := range ids {
		if w, ok := r.workflows[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Job returns the live job record for a ref, or nil.
func (r *Registry) Job(ref JobRef) *workflow.Job {
	return r.jobs[ref]
}

// FindJobByID resolves a bare job id within a tenant's workflows. The
// lookup requires unambiguity: if the id matches jobs in more than one
// workflow the call fails with not found rather than guessing.
func (r *Registry) FindJobByID(tenantID, jobID string) (*workflow.Job, error) {
	var found *workflow.Job
	for _, wfID := range r.byTenant[tenantID] {
		if j, ok := r.jobs[JobRef{WorkflowID: wfID, JobID: jobID}]; ok {
			if found != nil {
				return nil, shared.NewDomainError("AMBIGUOUS", "job id "+jobID+" is ambiguous", shared.ErrNotFound)
			}
			found = j
		}
	}
	if found == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "job "+jobID+" not found", shared.ErrNotFound)
	}
	return found, nil
}

// UpdateJob applies a typed patch to a job. The patch itself enforces the
// absorbing-terminal and monotonic-progress rules.
func (r *Registry) UpdateJob(ref JobRef, patch *workflow.JobPatch, now time.Time) (bool, error) {
	j, ok := r.jobs[ref]
	if !ok {
		return false, shared.NewDomainError("NOT_FOUND", "job "+ref.JobID+" not found", shared.ErrNotFound)
	}
	return patch.Apply(j, now), nil
}

// DeleteWorkflow removes a workflow and its job index entries.
func (r *Registry) DeleteWorkflow(workflowID string) {
	w, ok := r.workflows[workflowID]
	if !ok {
		return
	}
	for _, j := range w.Jobs {
		delete(r.jobs, JobRef{WorkflowID: workflowID, JobID: j.JobID})
	}
	delete(r.workflows, workflowID)

	ids := r.byTenant[w.TenantID]
	for i, id := range ids {
		if id == workflowID {
			r.byTenant[w.TenantID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byTenant[w.TenantID]) == 0 {
		delete(r.byTenant, w.TenantID)
	}
}

// TenantHasActiveJobs reports whether the tenant has any job in PENDING or
// RUNNING across all its workflows.
func (r *Registry) TenantHasActiveJobs(tenantID string) bool {
	for _, wfID := range r.byTenant[tenantID] {
		w := r.workflows[wfID]
		for _, j := range w.Jobs {
			if j.Status == workflow.StatusPending || j.Status == workflow.StatusRunning {
				return true
			}
		}
	}
	return false
}

// RunningJobs returns all jobs currently in RUNNING.
func (r *Registry) RunningJobs() []*workflow.Job {
	var out []*workflow.Job
	for _, j := range r.jobs {
		if j.Status == workflow.StatusRunning {
			out = append(out, j)
		}
	}
	return out
}

// Workflows returns all live workflow records.
func (r *Registry) Workflows() []*workflow.Workflow {
	out := make([]*workflow.Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	return out
}
