package app

import (
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
)

type workflowGraph struct {
	// outstanding predecessors per job; a job is ready at zero.
	outstanding map[string]int
	// successors holds the reverse dependency index.
	successors map[string][]string
	// jobOrder preserves submission order for deterministic readiness.
	jobOrder []string
}

// Resolver tracks, per workflow, how many predecessors each job is still
// waiting on, and promotes jobs to ready as predecessors succeed.
type Resolver struct {
	graphs map[string]*workflowGraph
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{graphs: make(map[string]*workflowGraph)}
}

// Register indexes a validated workflow and returns the ids of jobs with no
// predecessors, in workflow order.
func (r *Resolver) Register(w *workflow.Workflow) []string {
	g := &workflowGraph{
		outstanding: make(map[string]int, len(w.Jobs)),
		successors:  make(map[string][]string, len(w.Jobs)),
		jobOrder:    make([]string, 0, len(w.Jobs)),
	}
	for _, j := range w.Jobs {
		g.outstanding[j.JobID] = len(j.DependsOn)
		g.jobOrder = append(g.jobOrder, j.JobID)
		for _, dep := range j.DependsOn {
			g.successors[dep] = append(g.successors[dep], j.JobID)
		}
	}
	r.graphs[w.WorkflowID] = g

	var ready []string
	for _, id := range g.jobOrder {
		if g.outstanding[id] == 0 {
			ready = append(ready, id)
		}
	}
	return ready
}

// OnSucceeded decrements the outstanding count of the job's successors and
// returns those whose count reached zero.
func (r *Resolver) OnSucceeded(workflowID, jobID string) []string {
	g, ok := r.graphs[workflowID]
	if !ok {
		return nil
	}
	var ready []string
	for _, succ := range g.successors[jobID] {
		g.outstanding[succ]--
		if g.outstanding[succ] == 0 {
			ready = append(ready, succ)
		}
	}
	return ready
}

// Successors returns the direct dependents of a job.
func (r *Resolver) Successors(workflowID, jobID string) []string {
	g, ok := r.graphs[workflowID]
	if !ok {
		return nil
	}
	return g.successors[jobID]
}

// Drop removes a workflow's graph, once all its jobs are terminal.
func (r *Resolver) Drop(workflowID string) {
	delete(r.graphs, workflowID)
}
