package workflow

import (
	"time"
)

// Job is a unit of executable work within a workflow. The scheduling key is
// the (tenant, branch) pair; jobs on the same key run serially, FIFO.
//
// The canonical external identity of a job is the (workflow_id, job_id)
// pair. WorkflowID and TenantID are denormalized onto the job so that
// completion and progress events can be routed without a registry lookup.
type Job struct {
	JobID      string
	WorkflowID string
	TenantID   string

	Type      JobType
	Branch    string
	ImagePath string
	DependsOn []string

	Status   Status
	Progress float64

	// Tile accounting reported by the executor; zero until the executor
	// publishes its first progress update.
	TilesProcessed int
	TilesTotal     int

	ErrorMessage string
	ResultPath   string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	// Progress timing used for elapsed/ETA reporting.
	FirstProgressAt *time.Time
	LastProgressAt  *time.Time
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	c.DependsOn = make([]string, len(j.DependsOn))
	copy(c.DependsOn, j.DependsOn)
	c.StartedAt = cloneTime(j.StartedAt)
	c.FinishedAt = cloneTime(j.FinishedAt)
	c.FirstProgressAt = cloneTime(j.FirstProgressAt)
	c.LastProgressAt = cloneTime(j.LastProgressAt)
	return &c
}

// ElapsedSeconds returns the seconds since the job first reported progress,
// or nil if it has not reported yet. For terminal jobs the elapsed time is
// frozen at the last progress update.
func (j *Job) ElapsedSeconds(now time.Time) *float64 {
	if j.FirstProgressAt == nil {
		return nil
	}
	end := now
	if j.Status.IsTerminal() && j.LastProgressAt != nil {
		end = *j.LastProgressAt
	}
	s := end.Sub(*j.FirstProgressAt).Seconds()
	return &s
}

// ETASeconds estimates the remaining seconds from the observed progress
// rate, or nil when no estimate is possible.
func (j *Job) ETASeconds(now time.Time) *float64 {
	if j.FirstProgressAt == nil || j.Progress <= 0 || j.Progress >= 1.0 || j.Status.IsTerminal() {
		return nil
	}
	elapsed := now.Sub(*j.FirstProgressAt).Seconds()
	eta := (elapsed / j.Progress) * (1.0 - j.Progress)
	return &eta
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
