package app_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/bus"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	t      *testing.T
	engine *app.Engine
	ctx    context.Context
}

type fixtureOpts struct {
	maxWorkers  int
	maxUsers    int
	mailboxSize int
}

func newFixture(t *testing.T, opts fixtureOpts, executors map[workflow.JobType]app.Executor) *fixture {
	t.Helper()
	if opts.maxWorkers == 0 {
		opts.maxWorkers = 10
	}
	if opts.maxUsers == 0 {
		opts.maxUsers = 3
	}
	if opts.mailboxSize == 0 {
		opts.mailboxSize = 64
	}

	log := logger.NewNop()
	cfg := config.SchedulerConfig{
		MaxWorkers:       opts.maxWorkers,
		MaxActiveUsers:   opts.maxUsers,
		EventMailboxSize: opts.mailboxSize,
		LatencyWindow:    time.Minute,
	}

	registry := app.NewExecutorRegistry()
	for jobType, exec := range executors {
		registry.Register(jobType, exec)
	}

	eventBus := bus.New(cfg.EventMailboxSize, log)
	pool := app.NewWorkerPool(cfg.MaxWorkers, log)
	engine := app.NewEngine(cfg, registry, pool, eventBus, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)
	go engine.Run(ctx)

	return &fixture{t: t, engine: engine, ctx: ctx}
}

// quickExecutor completes immediately with a result path.
func quickExecutor() app.Executor {
	return app.ExecutorFunc(func(_ context.Context, job *workflow.Job, _ app.ProgressSink) (string, error) {
		return "/results/" + job.JobID + ".json", nil
	})
}

// failFor fails the named jobs and succeeds for the rest.
func failFor(jobIDs ...string) app.Executor {
	failing := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		failing[id] = true
	}
	return app.ExecutorFunc(func(_ context.Context, job *workflow.Job, _ app.ProgressSink) (string, error) {
		if failing[job.JobID] {
			return "", fmt.Errorf("inference crashed on %s", job.JobID)
		}
		return "/results/" + job.JobID + ".json", nil
	})
}

// gate blocks executors until released, recording which jobs started.
type gate struct {
	started chan string
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{
		started: make(chan string, 64),
		release: make(chan struct{}, 64),
	}
}

func (g *gate) Execute(_ context.Context, job *workflow.Job, _ app.ProgressSink) (string, error) {
	g.started <- job.JobID
	<-g.release
	return "/results/" + job.JobID + ".json", nil
}

// Release lets n blocked executions finish.
func (g *gate) Release(n int) {
	for i := 0; i < n; i++ {
		g.release <- struct{}{}
	}
}

// ReleaseAll unblocks everything, now and later.
func (g *gate) ReleaseAll() {
	g.once.Do(func() { close(g.release) })
}

func (g *gate) waitStarted(t *testing.T, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		select {
		case id := <-g.started:
			ids = append(ids, id)
		case <-time.After(waitFor):
			t.Fatalf("only %d of %d jobs started", len(ids), n)
		}
	}
	return ids
}

func allTypes(e app.Executor) map[workflow.JobType]app.Executor {
	return map[workflow.JobType]app.Executor{
		workflow.JobTypeCellSegmentation: e,
		workflow.JobTypeTissueMask:       e,
	}
}

func jobSpec(id, branch string, deps ...string) workflow.JobSpec {
	return workflow.JobSpec{
		JobID:     id,
		JobType:   workflow.JobTypeCellSegmentation,
		ImagePath: "/data/slide.svs",
		Branch:    branch,
		DependsOn: deps,
	}
}

func (f *fixture) submit(tenantID, name string, jobs ...workflow.JobSpec) *workflow.Workflow {
	f.t.Helper()
	wf, err := f.engine.SubmitWorkflow(f.ctx, tenantID, &workflow.Spec{Name: name, Jobs: jobs})
	require.NoError(f.t, err)
	return wf
}

func (f *fixture) waitWorkflowStatus(tenantID, workflowID string, want workflow.Status) *workflow.Workflow {
	f.t.Helper()
	var last *workflow.Workflow
	require.Eventually(f.t, func() bool {
		wf, err := f.engine.GetWorkflow(tenantID, workflowID)
		if err != nil {
			return false
		}
		last = wf
		return wf.Status() == want
	}, waitFor, tick, "workflow %s never reached %s", workflowID, want)
	return last
}

func (f *fixture) waitJobStatus(tenantID, jobID string, want workflow.Status) *workflow.Job {
	f.t.Helper()
	var last *workflow.Job
	require.Eventually(f.t, func() bool {
		j, err := f.engine.GetJob(tenantID, jobID)
		if err != nil {
			return false
		}
		last = j
		return j.Status == want
	}, waitFor, tick, "job %s never reached %s", jobID, want)
	return last
}

func collectUntil(t *testing.T, sub *bus.Subscription, stop func(bus.Event) bool) []bus.Event {
	t.Helper()
	var events []bus.Event
	deadline := time.After(waitFor)
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return events
			}
			events = append(events, ev)
			if stop(ev) {
				return events
			}
		case <-deadline:
			t.Fatalf("timed out after %d events", len(events))
		}
	}
}

// ---------------------------------------------------------------------------

func TestEngine_SingleBranchChainRunsSerially(t *testing.T) {
	f := newFixture(t, fixtureOpts{}, allTypes(quickExecutor()))
	sub := f.engine.Subscribe("t1")
	defer sub.Close()

	wf := f.submit("t1", "chain",
		jobSpec("a", "b1"),
		jobSpec("c", "b1", "a"),
	)

	events := collectUntil(t, sub, func(ev bus.Event) bool {
		return ev.Kind == bus.KindWorkflowStatus
	})

	// Keep only the status events; progress events interleave freely.
	var statuses []string
	for _, ev := range events {
		switch ev.Kind {
		case bus.KindJobStatus:
			statuses = append(statuses, ev.JobID+":"+string(ev.Status))
		case bus.KindWorkflowStatus:
			statuses = append(statuses, "workflow:"+string(ev.Status))
		}
	}
	assert.Equal(t, []string{
		"a:RUNNING",
		"a:SUCCEEDED",
		"c:RUNNING",
		"c:SUCCEEDED",
		"workflow:SUCCEEDED",
	}, statuses)

	done := f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)
	for _, j := range done.Jobs {
		assert.NotEmpty(t, j.ResultPath)
		assert.NotNil(t, j.StartedAt)
		assert.NotNil(t, j.FinishedAt)
	}
	assert.True(t, f.engine.Healthy())
}

func TestEngine_BranchesRunInParallel(t *testing.T) {
	g := newGate()
	f := newFixture(t, fixtureOpts{maxWorkers: 4}, allTypes(g))
	defer g.ReleaseAll()

	wf := f.submit("t1", "parallel",
		jobSpec("a", "b1"),
		jobSpec("b", "b2"),
	)

	// Both branch heads must be in flight at the same time.
	ids := g.waitStarted(t, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	a, err := f.engine.GetJob("t1", "a")
	require.NoError(t, err)
	b, err := f.engine.GetJob("t1", "b")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRunning, a.Status)
	assert.Equal(t, workflow.StatusRunning, b.Status)

	g.Release(2)
	f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)
}

func TestEngine_SameBranchNeverOverlaps(t *testing.T) {
	g := newGate()
	f := newFixture(t, fixtureOpts{maxWorkers: 4}, allTypes(g))
	defer g.ReleaseAll()

	f.submit("t1", "serialized",
		jobSpec("a", "b1"),
		jobSpec("b", "b1"),
	)

	first := g.waitStarted(t, 1)
	assert.Equal(t, []string{"a"}, first)

	// While a holds the branch, b must stay PENDING.
	time.Sleep(50 * time.Millisecond)
	b, err := f.engine.GetJob("t1", "b")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, b.Status)

	g.Release(1)
	second := g.waitStarted(t, 1)
	assert.Equal(t, []string{"b"}, second)
	g.Release(1)
}

func TestEngine_SingleWorkerRunsEverythingSerially(t *testing.T) {
	var current, peak atomic.Int32
	exec := app.ExecutorFunc(func(_ context.Context, _ *workflow.Job, _ app.ProgressSink) (string, error) {
		c := current.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return "/results/x.json", nil
	})

	f := newFixture(t, fixtureOpts{maxWorkers: 1}, allTypes(exec))
	wf := f.submit("t1", "serial",
		jobSpec("a", "b1"),
		jobSpec("b", "b2"),
		jobSpec("c", "b3"),
		jobSpec("d", "b4"),
	)

	f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)
	assert.Equal(t, int32(1), peak.Load(), "jobs overlapped despite a single worker")
	assert.True(t, f.engine.Healthy())
}

func TestEngine_GlobalWorkerCap(t *testing.T) {
	g := newGate()
	f := newFixture(t, fixtureOpts{maxWorkers: 2}, allTypes(g))
	defer g.ReleaseAll()

	wf := f.submit("t1", "capped",
		jobSpec("a", "b1"),
		jobSpec("b", "b2"),
		jobSpec("c", "b3"),
	)

	g.waitStarted(t, 2)
	// Third branch head must wait for a worker slot.
	time.Sleep(50 * time.Millisecond)
	snapshot := f.engine.Dashboard()
	assert.Equal(t, 2, snapshot.ActiveWorkers.Global)
	assert.Equal(t, 1, snapshot.QueueDepth.Total)

	g.ReleaseAll()
	f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)
}

func TestEngine_AdmissionCap(t *testing.T) {
	g := newGate()
	f := newFixture(t, fixtureOpts{maxUsers: 2}, allTypes(g))
	defer g.ReleaseAll()

	wf1 := f.submit("t1", "one", jobSpec("a", "b1"))
	f.submit("t2", "two", jobSpec("a", "b1"))

	// Third tenant bounces off the cap; nothing is written for it.
	_, err := f.engine.SubmitWorkflow(f.ctx, "t3", &workflow.Spec{
		Name: "three",
		Jobs: []workflow.JobSpec{jobSpec("a", "b1")},
	})
	require.Error(t, err)
	assert.True(t, shared.IsTenantRejected(err))
	assert.Empty(t, f.engine.ListWorkflows("t3"))

	// A second submission by an admitted tenant is always accepted.
	f.submit("t1", "one-more", jobSpec("x", "b2"))

	// Drain t1 completely; its slot frees and t3 gets in.
	g.ReleaseAll()
	f.waitWorkflowStatus("t1", wf1.WorkflowID, workflow.StatusSucceeded)

	require.Eventually(t, func() bool {
		_, err := f.engine.SubmitWorkflow(f.ctx, "t3", &workflow.Spec{
			Name: "three",
			Jobs: []workflow.JobSpec{jobSpec("a", "b1")},
		})
		return err == nil
	}, waitFor, tick)
	assert.True(t, f.engine.Healthy())
}

func TestEngine_CascadingFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{}, allTypes(failFor("a")))
	sub := f.engine.Subscribe("t1")
	defer sub.Close()

	wf := f.submit("t1", "doomed",
		jobSpec("a", "b1"),
		jobSpec("b", "b1", "a"),
		jobSpec("c", "b1", "b"),
	)

	done := f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusFailed)

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, workflow.StatusFailed, done.Job(id).Status)
	}
	assert.Contains(t, done.Job("a").ErrorMessage, "inference crashed")
	assert.Contains(t, done.Job("b").ErrorMessage, "upstream failure: a")
	assert.Contains(t, done.Job("c").ErrorMessage, "upstream failure: b")

	// Branch queue fully drained, nothing left running.
	snapshot := f.engine.Dashboard()
	assert.Zero(t, snapshot.QueueDepth.Total)
	assert.Zero(t, snapshot.ActiveWorkers.Global)
	assert.True(t, f.engine.Healthy())
}

func TestEngine_CancelPendingJob(t *testing.T) {
	g := newGate()
	f := newFixture(t, fixtureOpts{}, allTypes(g))
	defer g.ReleaseAll()

	wf := f.submit("t1", "race",
		jobSpec("a", "b1"),
		jobSpec("b", "b1"),
	)
	g.waitStarted(t, 1) // a is running, b queued behind it

	cancelled, err := f.engine.CancelJob(f.ctx, "t1", "b")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, cancelled.Status)

	// A second cancel is rejected: the job is already terminal.
	_, err = f.engine.CancelJob(f.ctx, "t1", "b")
	require.Error(t, err)
	assert.True(t, shared.IsNotCancellable(err))

	// When a completes, b must not be dispatched.
	g.Release(1)
	done := f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)
	assert.Equal(t, workflow.StatusSucceeded, done.Job("a").Status)
	assert.Equal(t, workflow.StatusCancelled, done.Job("b").Status)
	assert.Nil(t, done.Job("b").StartedAt)

	select {
	case id := <-g.started:
		t.Fatalf("cancelled job %s was dispatched", id)
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, f.engine.Healthy())
}

func TestEngine_CancelRunningJobRejected(t *testing.T) {
	g := newGate()
	f := newFixture(t, fixtureOpts{}, allTypes(g))
	defer g.ReleaseAll()

	f.submit("t1", "running", jobSpec("a", "b1"))
	g.waitStarted(t, 1)

	_, err := f.engine.CancelJob(f.ctx, "t1", "a")
	require.Error(t, err)
	assert.True(t, shared.IsNotCancellable(err))
	g.Release(1)
}

func TestEngine_CancelCascadesToDependents(t *testing.T) {
	g := newGate()
	f := newFixture(t, fixtureOpts{}, allTypes(g))
	defer g.ReleaseAll()

	wf := f.submit("t1", "cascade",
		jobSpec("a", "b1"),
		jobSpec("b", "b2"),
		jobSpec("c", "b2", "b"),
	)
	g.waitStarted(t, 2) // a and b running on their branches

	// b is running, so cancel its own pending dependent instead.
	_, err := f.engine.CancelJob(f.ctx, "t1", "c")
	require.NoError(t, err)

	g.Release(2)
	done := f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)
	assert.Equal(t, workflow.StatusCancelled, done.Job("c").Status)

	// Cancelling a queued upstream job fails its dependents with a marker.
	g2 := newGate()
	f2 := newFixture(t, fixtureOpts{}, allTypes(g2))
	defer g2.ReleaseAll()

	wf3 := f2.submit("t1", "blocked-head",
		jobSpec("busy", "b1"),
		jobSpec("head", "b1"),
		jobSpec("tail", "b2", "head"),
	)
	g2.waitStarted(t, 1) // busy running; head queued; tail pending on head

	_, err = f2.engine.CancelJob(f2.ctx, "t1", "head")
	require.NoError(t, err)

	g2.Release(1)
	// The cascaded FAILED dependent settles the workflow as FAILED.
	done3 := f2.waitWorkflowStatus("t1", wf3.WorkflowID, workflow.StatusFailed)
	assert.Equal(t, workflow.StatusSucceeded, done3.Job("busy").Status)
	assert.Equal(t, workflow.StatusCancelled, done3.Job("head").Status)
	assert.Equal(t, workflow.StatusFailed, done3.Job("tail").Status)
	assert.Equal(t, "upstream cancelled", done3.Job("tail").ErrorMessage)
}

func TestEngine_SlowSubscriberNeverBlocksScheduler(t *testing.T) {
	exec := app.ExecutorFunc(func(_ context.Context, _ *workflow.Job, report app.ProgressSink) (string, error) {
		for i := 1; i <= 1000; i++ {
			report(float64(i)/1000.0, i, 1000)
		}
		return "/results/flood.json", nil
	})

	f := newFixture(t, fixtureOpts{mailboxSize: 2}, allTypes(exec))
	sub := f.engine.Subscribe("t1")
	defer sub.Close()

	wf := f.submit("t1", "flood", jobSpec("a", "b1"))
	f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)

	// Drain whatever survived the mailbox: the stream must end with the
	// terminal workflow event and must have dropped, not blocked.
	var events []bus.Event
	deadline := time.After(time.Second)
drain:
	for {
		select {
		case ev := <-sub.C():
			events = append(events, ev)
			if ev.Kind == bus.KindWorkflowStatus {
				break drain
			}
		case <-deadline:
			break drain
		}
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, bus.KindWorkflowStatus, last.Kind)
	assert.Equal(t, workflow.StatusSucceeded, last.Status)
	assert.LessOrEqual(t, len(events), 3)
	assert.True(t, f.engine.Healthy())
}

func TestEngine_SingleJobYieldsResultPath(t *testing.T) {
	f := newFixture(t, fixtureOpts{}, allTypes(quickExecutor()))

	wf := f.submit("t1", "solo", jobSpec("only", "main"))
	done := f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)

	job := done.Job("only")
	assert.Equal(t, workflow.StatusSucceeded, job.Status)
	assert.NotEmpty(t, job.ResultPath)
}

func TestEngine_TenantIsolation(t *testing.T) {
	f := newFixture(t, fixtureOpts{}, allTypes(quickExecutor()))

	wf1 := f.submit("t1", "mine", jobSpec("a", "b1"))
	f.submit("t2", "theirs", jobSpec("a", "b1"))

	listed := f.engine.ListWorkflows("t1")
	require.Len(t, listed, 1)
	assert.Equal(t, "t1", listed[0].TenantID)

	_, err := f.engine.GetWorkflow("t2", wf1.WorkflowID)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	// Bare job ids resolve within the caller's tenant only.
	j, err := f.engine.GetJob("t2", "a")
	require.NoError(t, err)
	assert.Equal(t, "t2", j.TenantID)
}

func TestEngine_AmbiguousJobIDFailsLookup(t *testing.T) {
	f := newFixture(t, fixtureOpts{}, allTypes(quickExecutor()))

	wf1 := f.submit("t1", "first", jobSpec("dup", "b1"))
	wf2 := f.submit("t1", "second", jobSpec("dup", "b2"))
	f.waitWorkflowStatus("t1", wf1.WorkflowID, workflow.StatusSucceeded)
	f.waitWorkflowStatus("t1", wf2.WorkflowID, workflow.StatusSucceeded)

	_, err := f.engine.GetJob("t1", "dup")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestEngine_WorkflowProgressIsMeanOfJobs(t *testing.T) {
	g := newGate()
	half := app.ExecutorFunc(func(_ context.Context, job *workflow.Job, report app.ProgressSink) (string, error) {
		report(0.5, 5, 10)
		g.started <- job.JobID
		<-g.release
		return "/results/x.json", nil
	})

	f := newFixture(t, fixtureOpts{}, allTypes(half))
	defer g.ReleaseAll()

	wf := f.submit("t1", "mean",
		jobSpec("a", "b1"),
		jobSpec("b", "b1", "a"), // stays pending at 0.0
	)
	g.waitStarted(t, 1)

	require.Eventually(t, func() bool {
		w, err := f.engine.GetWorkflow("t1", wf.WorkflowID)
		if err != nil {
			return false
		}
		return w.Job("a").Progress > 0
	}, waitFor, tick)

	w, err := f.engine.GetWorkflow("t1", wf.WorkflowID)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, w.Progress(), 1e-9)
	assert.Equal(t, 5, w.Job("a").TilesProcessed)
	assert.Equal(t, 10, w.Job("a").TilesTotal)

	g.ReleaseAll()
	f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)
}

func TestEngine_SubmissionValidation(t *testing.T) {
	f := newFixture(t, fixtureOpts{}, allTypes(quickExecutor()))

	t.Run("missing tenant", func(t *testing.T) {
		_, err := f.engine.SubmitWorkflow(f.ctx, "", &workflow.Spec{
			Name: "x",
			Jobs: []workflow.JobSpec{jobSpec("a", "b1")},
		})
		require.Error(t, err)
	})

	t.Run("cycle leaves no state behind", func(t *testing.T) {
		_, err := f.engine.SubmitWorkflow(f.ctx, "t9", &workflow.Spec{
			Name: "cyclic",
			Jobs: []workflow.JobSpec{
				jobSpec("a", "b1", "b"),
				jobSpec("b", "b1", "a"),
			},
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Empty(t, f.engine.ListWorkflows("t9"))

		// The rejected tenant holds no admission slot either.
		snapshot := f.engine.Dashboard()
		assert.Zero(t, snapshot.ActiveUsers.Count)
	})
}

func TestEngine_RetentionDeletesOldTerminalWorkflows(t *testing.T) {
	f := newFixture(t, fixtureOpts{}, allTypes(quickExecutor()))

	wf := f.submit("t1", "old", jobSpec("a", "b1"))
	f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)

	// A cutoff in the future sweeps everything terminal.
	removed := f.engine.DeleteTerminalBefore(time.Now().UTC().Add(time.Minute))
	assert.Equal(t, 1, removed)
	assert.Empty(t, f.engine.ListWorkflows("t1"))

	// Running workflows are never swept.
	g := newGate()
	f2 := newFixture(t, fixtureOpts{}, allTypes(g))
	defer g.ReleaseAll()
	wf2 := f2.submit("t1", "live", jobSpec("a", "b1"))
	g.waitStarted(t, 1)
	assert.Zero(t, f2.engine.DeleteTerminalBefore(time.Now().UTC().Add(time.Minute)))
	g.Release(1)
	f2.waitWorkflowStatus("t1", wf2.WorkflowID, workflow.StatusSucceeded)
}

func TestEngine_DashboardCountsAndLatency(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxWorkers: 5, maxUsers: 4}, allTypes(quickExecutor()))

	wf := f.submit("t1", "metrics", jobSpec("a", "b1"))
	f.waitWorkflowStatus("t1", wf.WorkflowID, workflow.StatusSucceeded)

	snapshot := f.engine.Dashboard()
	assert.Equal(t, "healthy", snapshot.SystemHealth.Status)
	assert.Equal(t, 5, snapshot.ActiveWorkers.Max)
	assert.Equal(t, 4, snapshot.ActiveUsers.Max)
	assert.Zero(t, snapshot.ActiveWorkers.Global)
	assert.Zero(t, snapshot.QueueDepth.Total)
	// One completion inside the window; the average must be non-negative
	// and tiny for an instant executor.
	assert.GreaterOrEqual(t, snapshot.JobLatency.AverageSeconds, 0.0)
	assert.Less(t, snapshot.JobLatency.AverageSeconds, 5.0)
}
