// Package app implements the scheduling core: the job registry, tenant
// admission, branch queues, dependency resolution, the worker pool, and the
// engine loop that coordinates them.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/bus"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/metrics"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// Engine is the central coordinator. It is the single writer over the
// registry, branch queues and resolver: control-plane submissions and
// worker callbacks are marshalled onto one input queue and drained by the
// Run loop, one mutation per event; submissions, cancellations and job
// completions are followed by a dispatch pass.
//
// Reads are served concurrently through the state lock and return deep
// snapshots; no caller ever holds a reference into live records.
type Engine struct {
	cfg       config.SchedulerConfig
	logger    *logger.Logger
	bus       *bus.Bus
	pool      *WorkerPool
	executors *ExecutorRegistry

	inbox   *inbox
	stopped chan struct{}

	mu        sync.RWMutex
	registry  *Registry
	admission *Admission
	queues    *BranchQueues
	resolver  *Resolver
	latency   *LatencyRecorder
	running   map[JobRef]struct{}
	// poisoned workflows refuse further state transitions after an
	// internal invariant violation; the process keeps serving others.
	poisoned map[string]string
}

// NewEngine wires the scheduling core together.
func NewEngine(cfg config.SchedulerConfig, executors *ExecutorRegistry, pool *WorkerPool, b *bus.Bus, log *logger.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    log.With("component", "engine"),
		bus:       b,
		pool:      pool,
		executors: executors,
		inbox:     newInbox(),
		stopped:   make(chan struct{}),
		registry:  NewRegistry(),
		admission: NewAdmission(cfg.MaxActiveUsers),
		queues:    NewBranchQueues(),
		resolver:  NewResolver(),
		latency:   NewLatencyRecorder(cfg.LatencyWindow),
		running:   make(map[JobRef]struct{}),
		poisoned:  make(map[string]string),
	}
}

// Input queue message types.

type submitResult struct {
	wf  *workflow.Workflow
	err error
}

type submitMsg struct {
	tenantID string
	spec     *workflow.Spec
	reply    chan submitResult
}

type cancelResult struct {
	job *workflow.Job
	err error
}

type cancelMsg struct {
	tenantID string
	jobID    string
	reply    chan cancelResult
}

type finishMsg struct {
	ref     JobRef
	outcome Outcome
}

type progressMsg struct {
	ref            JobRef
	progress       float64
	tilesProcessed int
	tilesTotal     int
}

// Run drains the input queue until the context is cancelled. It must be
// started exactly once.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("scheduler loop started",
		"max_workers", e.cfg.MaxWorkers,
		"max_active_users", e.cfg.MaxActiveUsers,
	)
	defer close(e.stopped)

	for {
		msg, ok := e.inbox.next(ctx)
		if !ok {
			e.logger.Info("scheduler loop stopping")
			return
		}
		switch m := msg.(type) {
		case submitMsg:
			m.reply <- e.handleSubmit(m.tenantID, m.spec)
		case cancelMsg:
			m.reply <- e.handleCancel(m.tenantID, m.jobID)
		case finishMsg:
			e.handleFinish(m.ref, m.outcome)
		case progressMsg:
			e.handleProgress(m.ref, m.progress, m.tilesProcessed, m.tilesTotal)
		}
	}
}

// ---------------------------------------------------------------------------
// Control plane
// ---------------------------------------------------------------------------

// SubmitWorkflow validates and submits a workflow for the tenant. On any
// validation or admission failure no state is written.
func (e *Engine) SubmitWorkflow(ctx context.Context, tenantID string, spec *workflow.Spec) (*workflow.Workflow, error) {
	if tenantID == "" {
		return nil, shared.NewDomainError("TENANT", "tenant id is required", shared.ErrTenantMissing)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	// Unknown job types are rejected before anything is enqueued.
	for _, js := range spec.Jobs {
		if _, err := e.executors.Lookup(js.JobType); err != nil {
			return nil, err
		}
	}

	reply := make(chan submitResult, 1)
	if err := e.send(ctx, submitMsg{tenantID: tenantID, spec: spec, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.wf, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelJob cancels a PENDING job of the tenant, cascading to dependents.
func (e *Engine) CancelJob(ctx context.Context, tenantID, jobID string) (*workflow.Job, error) {
	if tenantID == "" {
		return nil, shared.NewDomainError("TENANT", "tenant id is required", shared.ErrTenantMissing)
	}
	reply := make(chan cancelResult, 1)
	if err := e.send(ctx, cancelMsg{tenantID: tenantID, jobID: jobID, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.job, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ListWorkflows returns snapshots of the tenant's workflows, newest last.
// Tenant isolation is absolute: only records with a matching tenant id are
// ever returned.
func (e *Engine) ListWorkflows(tenantID string) []*workflow.Workflow {
	e.mu.RLock()
	defer e.mu.RUnlock()

	live := e.registry.WorkflowsByTenant(tenantID)
	out := make([]*workflow.Workflow, len(live))
	for i, w := range live {
		out[i] = w.Clone()
	}
	return out
}

// GetWorkflow returns a snapshot of one workflow, enforcing isolation: a
// workflow owned by another tenant is reported as not found.
func (e *Engine) GetWorkflow(tenantID, workflowID string) (*workflow.Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	w := e.registry.Workflow(workflowID)
	if w == nil || w.TenantID != tenantID {
		return nil, shared.NewDomainError("NOT_FOUND", "workflow "+workflowID+" not found", shared.ErrNotFound)
	}
	return w.Clone(), nil
}

// GetJob resolves a bare job id within the tenant's workflows and returns a
// snapshot. Ambiguous ids fail with not found.
func (e *Engine) GetJob(tenantID, jobID string) (*workflow.Job, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	j, err := e.registry.FindJobByID(tenantID, jobID)
	if err != nil {
		return nil, err
	}
	return j.Clone(), nil
}

// Subscribe attaches an event stream for the tenant.
func (e *Engine) Subscribe(tenantID string) *bus.Subscription {
	return e.bus.Subscribe(tenantID)
}

// DeleteTerminalBefore removes terminal workflows whose jobs all finished
// before the cutoff. Used by the retention sweeper. Returns the number of
// workflows removed.
func (e *Engine) DeleteTerminalBefore(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for _, w := range e.registry.Workflows() {
		if !w.Status().IsTerminal() {
			continue
		}
		if w.FinishedAt == nil || !w.FinishedAt.Before(cutoff) {
			continue
		}
		e.registry.DeleteWorkflow(w.WorkflowID)
		e.resolver.Drop(w.WorkflowID)
		delete(e.poisoned, w.WorkflowID)
		removed++
	}
	return removed
}

// Healthy reports whether the structural invariants hold and no workflow
// has been poisoned by an internal violation.
func (e *Engine) Healthy() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.poisoned) == 0 && e.verifyInvariants()
}

// send enqueues a message unless the loop has stopped.
func (e *Engine) send(ctx context.Context, msg any) error {
	select {
	case <-e.stopped:
		return shared.NewDomainError("INTERNAL", "scheduler is shut down", shared.ErrInternal)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	e.inbox.push(msg)
	return nil
}

// ---------------------------------------------------------------------------
// Loop handlers. Each handler performs one mutation under the state lock.
// Submit, cancel and finish then run a dispatch pass; progress updates do not.
// ---------------------------------------------------------------------------

func (e *Engine) handleSubmit(tenantID string, spec *workflow.Spec) submitResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasActive := e.admission.IsActive(tenantID)
	if !e.admission.TryAdmit(tenantID) {
		metrics.SubmissionsRejected.WithLabelValues(tenantID).Inc()
		e.logger.Info("submission rejected, active user limit reached",
			"tenant_id", tenantID,
			"active_users", e.admission.Count(),
		)
		return submitResult{err: shared.NewDomainError("ADMISSION",
			"active user limit reached", shared.ErrTenantRejected)}
	}

	w := workflow.New(tenantID, spec)
	if err := e.registry.CreateWorkflow(w); err != nil {
		if !wasActive {
			e.admission.Release(tenantID)
		}
		return submitResult{err: err}
	}

	ready := e.resolver.Register(w)
	for _, jobID := range ready {
		j := w.Job(jobID)
		e.queues.Enqueue(BranchKey{TenantID: tenantID, Branch: j.Branch},
			JobRef{WorkflowID: w.WorkflowID, JobID: jobID})
	}

	e.logger.Info("workflow submitted",
		"tenant_id", tenantID,
		"workflow_id", w.WorkflowID,
		"jobs", len(w.Jobs),
		"initially_ready", len(ready),
	)

	e.dispatchLocked()
	return submitResult{wf: w.Clone()}
}

func (e *Engine) handleCancel(tenantID, jobID string) cancelResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.registry.FindJobByID(tenantID, jobID)
	if err != nil {
		return cancelResult{err: err}
	}
	if _, bad := e.poisoned[j.WorkflowID]; bad {
		return cancelResult{err: shared.NewDomainError("INTERNAL",
			"workflow "+j.WorkflowID+" is quarantined", shared.ErrInternal)}
	}
	if j.Status != workflow.StatusPending {
		return cancelResult{err: shared.NewDomainError("CANCEL",
			"job "+jobID+" is "+string(j.Status), shared.ErrNotCancellable)}
	}

	ref := JobRef{WorkflowID: j.WorkflowID, JobID: j.JobID}
	e.queues.Remove(BranchKey{TenantID: tenantID, Branch: j.Branch}, ref)

	now := time.Now().UTC()
	e.applyTerminalLocked(j, Outcome{Status: workflow.StatusCancelled}, now)
	e.cascadeLocked(j, now)
	e.finishWorkflowLocked(j.WorkflowID, now)
	e.releaseTenantIfDrainedLocked(tenantID)

	e.dispatchLocked()
	return cancelResult{job: j.Clone()}
}

func (e *Engine) handleFinish(ref JobRef, outcome Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j := e.registry.Job(ref)
	if j == nil {
		e.logger.Warn("completion for unknown job", "workflow_id", ref.WorkflowID, "job_id", ref.JobID)
		delete(e.running, ref)
		return
	}

	key := BranchKey{TenantID: j.TenantID, Branch: j.Branch}
	if _, ok := e.running[ref]; !ok {
		e.poisonLocked(j.WorkflowID, "completion for a job that was not running: "+ref.JobID)
		return
	}
	delete(e.running, ref)
	e.queues.MarkDone(key)
	metrics.JobsRunning.WithLabelValues(j.TenantID).Dec()

	if _, bad := e.poisoned[j.WorkflowID]; bad {
		e.dispatchLocked()
		return
	}

	now := time.Now().UTC()
	e.applyTerminalLocked(j, outcome, now)

	switch outcome.Status {
	case workflow.StatusSucceeded:
		for _, succID := range e.resolver.OnSucceeded(ref.WorkflowID, ref.JobID) {
			succ := e.registry.Job(JobRef{WorkflowID: ref.WorkflowID, JobID: succID})
			if succ == nil || succ.Status != workflow.StatusPending {
				continue
			}
			e.queues.Enqueue(BranchKey{TenantID: succ.TenantID, Branch: succ.Branch},
				JobRef{WorkflowID: ref.WorkflowID, JobID: succID})
		}
	case workflow.StatusFailed, workflow.StatusCancelled:
		e.cascadeLocked(j, now)
	default:
		e.poisonLocked(j.WorkflowID, "worker reported non-terminal outcome "+string(outcome.Status))
		return
	}

	e.publishWorkflowProgressLocked(j.WorkflowID)
	e.finishWorkflowLocked(ref.WorkflowID, now)
	e.releaseTenantIfDrainedLocked(j.TenantID)
	e.dispatchLocked()
}

func (e *Engine) handleProgress(ref JobRef, progress float64, tilesProcessed, tilesTotal int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j := e.registry.Job(ref)
	if j == nil || j.Status.IsTerminal() {
		return
	}
	if _, bad := e.poisoned[ref.WorkflowID]; bad {
		return
	}

	patch := &workflow.JobPatch{Progress: &progress}
	if tilesProcessed >= 0 {
		patch.TilesProcessed = &tilesProcessed
	}
	if tilesTotal >= 0 {
		patch.TilesTotal = &tilesTotal
	}
	changed, _ := e.registry.UpdateJob(ref, patch, time.Now().UTC())
	if !changed {
		return
	}

	p := j.Progress
	ev := bus.Event{
		Kind:       bus.KindJobProgress,
		TenantID:   j.TenantID,
		WorkflowID: j.WorkflowID,
		JobID:      j.JobID,
		Progress:   &p,
	}
	if j.TilesTotal > 0 {
		tp, tt := j.TilesProcessed, j.TilesTotal
		ev.TilesProcessed = &tp
		ev.TilesTotal = &tt
	}
	e.bus.Publish(ev)
	e.publishWorkflowProgressLocked(j.WorkflowID)
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// dispatchLocked sweeps the branch queues once, starting every job that may
// run: the key must be idle, and the global worker cap must have room. Keys
// are visited round-robin so no (tenant, branch) is starved.
func (e *Engine) dispatchLocked() {
	for _, key := range e.queues.RoundRobinKeys() {
		if len(e.running) >= e.cfg.MaxWorkers {
			break
		}
		ref, ok := e.queues.TakeIfIdle(key)
		if !ok {
			continue
		}
		e.startJobLocked(key, ref)
		e.queues.MarkServed(key)
	}
	e.queues.GC()
}

func (e *Engine) startJobLocked(key BranchKey, ref JobRef) {
	j := e.registry.Job(ref)
	if j == nil || j.Status != workflow.StatusPending {
		// The queue entry was stale; free the key again.
		e.queues.MarkDone(key)
		return
	}

	executor, err := e.executors.Lookup(j.Type)
	if err != nil {
		e.queues.MarkDone(key)
		e.poisonLocked(ref.WorkflowID, "no executor for job type "+string(j.Type))
		return
	}

	now := time.Now().UTC()
	running := workflow.StatusRunning
	patch := &workflow.JobPatch{Status: &running, StartedAt: &now}
	if _, err := e.registry.UpdateJob(ref, patch, now); err != nil {
		e.queues.MarkDone(key)
		return
	}

	w := e.registry.Workflow(ref.WorkflowID)
	if w.StartedAt == nil {
		t := now
		w.StartedAt = &t
	}

	e.running[ref] = struct{}{}
	metrics.JobsRunning.WithLabelValues(j.TenantID).Inc()

	e.bus.Publish(bus.Event{
		Kind:       bus.KindJobStatus,
		TenantID:   j.TenantID,
		WorkflowID: j.WorkflowID,
		JobID:      j.JobID,
		Status:     workflow.StatusRunning,
	})

	e.logger.Debug("job dispatched",
		"tenant_id", j.TenantID,
		"workflow_id", j.WorkflowID,
		"job_id", j.JobID,
		"branch", j.Branch,
		"running", len(e.running),
	)

	snapshot := j.Clone()
	report := func(progress float64, tilesProcessed, tilesTotal int) {
		e.inbox.push(progressMsg{ref: ref, progress: progress, tilesProcessed: tilesProcessed, tilesTotal: tilesTotal})
	}
	done := func(out Outcome) {
		e.inbox.push(finishMsg{ref: ref, outcome: out})
	}
	e.pool.Submit(snapshot, executor, report, done)
}

// ---------------------------------------------------------------------------
// Shared mutation helpers
// ---------------------------------------------------------------------------

// applyTerminalLocked moves a job to its terminal status, records metrics
// and latency, and publishes the terminal job_status event.
func (e *Engine) applyTerminalLocked(j *workflow.Job, outcome Outcome, now time.Time) {
	ref := JobRef{WorkflowID: j.WorkflowID, JobID: j.JobID}
	patch := &workflow.JobPatch{Status: &outcome.Status, FinishedAt: &now}
	if outcome.ResultPath != "" {
		patch.ResultPath = &outcome.ResultPath
	}
	if outcome.ErrorMessage != "" {
		patch.ErrorMessage = &outcome.ErrorMessage
	}
	if _, err := e.registry.UpdateJob(ref, patch, now); err != nil {
		e.poisonLocked(j.WorkflowID, "failed to apply terminal status: "+err.Error())
		return
	}

	metrics.JobsTotal.WithLabelValues(j.TenantID, string(j.Type), string(outcome.Status)).Inc()
	if j.StartedAt != nil && j.FinishedAt != nil {
		dur := j.FinishedAt.Sub(*j.StartedAt)
		metrics.JobDuration.WithLabelValues(j.TenantID, string(j.Type)).Observe(dur.Seconds())
		e.latency.Record(*j.FinishedAt, dur)
	}

	e.bus.Publish(bus.Event{
		Kind:         bus.KindJobStatus,
		TenantID:     j.TenantID,
		WorkflowID:   j.WorkflowID,
		JobID:        j.JobID,
		Status:       j.Status,
		ErrorMessage: j.ErrorMessage,
	})
}

// cascadeLocked fails every transitive dependent of a terminally failed or
// cancelled job. Dependents of a cancelled job carry "upstream cancelled";
// dependents of a failed job carry "upstream failure: <predecessor>".
func (e *Engine) cascadeLocked(from *workflow.Job, now time.Time) {
	msg := "upstream failure: " + from.JobID
	if from.Status == workflow.StatusCancelled {
		msg = "upstream cancelled"
	}
	for _, succID := range e.resolver.Successors(from.WorkflowID, from.JobID) {
		succ := e.registry.Job(JobRef{WorkflowID: from.WorkflowID, JobID: succID})
		if succ == nil || succ.Status.IsTerminal() {
			continue
		}
		// A cascaded dependent can only be PENDING: it still waits on the
		// failed predecessor, so it was never queued or dispatched.
		e.applyTerminalLocked(succ, Outcome{Status: workflow.StatusFailed, ErrorMessage: msg}, now)
		e.cascadeLocked(succ, now)
	}
}

// finishWorkflowLocked recomputes the workflow status; when it became
// terminal it stamps finished_at, publishes the workflow_status event and
// drops the resolver graph.
func (e *Engine) finishWorkflowLocked(workflowID string, now time.Time) {
	w := e.registry.Workflow(workflowID)
	if w == nil {
		return
	}
	status := w.Status()
	if !status.IsTerminal() || w.FinishedAt != nil {
		return
	}
	t := now
	w.FinishedAt = &t
	e.resolver.Drop(workflowID)
	metrics.WorkflowsTotal.WithLabelValues(w.TenantID, string(status)).Inc()

	e.bus.Publish(bus.Event{
		Kind:       bus.KindWorkflowStatus,
		TenantID:   w.TenantID,
		WorkflowID: workflowID,
		Status:     status,
	})

	e.logger.Info("workflow finished",
		"tenant_id", w.TenantID,
		"workflow_id", workflowID,
		"status", status,
	)
}

func (e *Engine) publishWorkflowProgressLocked(workflowID string) {
	w := e.registry.Workflow(workflowID)
	if w == nil {
		return
	}
	p := w.Progress()
	e.bus.Publish(bus.Event{
		Kind:       bus.KindWorkflowProgress,
		TenantID:   w.TenantID,
		WorkflowID: workflowID,
		Progress:   &p,
	})
}

func (e *Engine) releaseTenantIfDrainedLocked(tenantID string) {
	if !e.registry.TenantHasActiveJobs(tenantID) {
		e.admission.Release(tenantID)
	}
}

// poisonLocked quarantines a workflow after an internal invariant
// violation: the loop logs, refuses further transitions on the workflow,
// and the health snapshot turns unhealthy. The process keeps running.
func (e *Engine) poisonLocked(workflowID, reason string) {
	if _, ok := e.poisoned[workflowID]; ok {
		return
	}
	e.poisoned[workflowID] = reason
	e.logger.Error("invariant violation, quarantining workflow",
		"workflow_id", workflowID,
		"reason", reason,
	)
}

// verifyInvariants performs the read-only structural self-test backing the
// dashboard's system_health field. Callers hold at least the read lock.
func (e *Engine) verifyInvariants() bool {
	// At most one running job per (tenant, branch); global cap respected.
	perKey := make(map[BranchKey]int)
	runningJobs := e.registry.RunningJobs()
	if len(runningJobs) > e.cfg.MaxWorkers {
		return false
	}
	for _, j := range runningJobs {
		key := BranchKey{TenantID: j.TenantID, Branch: j.Branch}
		perKey[key]++
		if perKey[key] > 1 {
			return false
		}
		// Every predecessor of a running job has succeeded.
		w := e.registry.Workflow(j.WorkflowID)
		for _, dep := range j.DependsOn {
			pred := w.Job(dep)
			if pred == nil || pred.Status != workflow.StatusSucceeded {
				return false
			}
		}
	}

	// Active tenant cap: every tenant with live work holds a slot.
	if e.admission.Count() > e.admission.Max() {
		return false
	}
	for _, w := range e.registry.Workflows() {
		for _, j := range w.Jobs {
			if j.Status == workflow.StatusPending || j.Status == workflow.StatusRunning {
				if !e.admission.IsActive(w.TenantID) {
					return false
				}
				break
			}
		}
	}
	return true
}
