package workflow

import (
	"time"
)

// JobPatch is a typed partial update to a job record. Only the fields the
// scheduler is allowed to mutate appear here; Apply enforces the
// absorbing-terminal and monotonic-progress rules before touching the job.
type JobPatch struct {
	Status         *Status
	Progress       *float64
	TilesProcessed *int
	TilesTotal     *int
	ErrorMessage   *string
	ResultPath     *string
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// Apply mutates the job according to the patch.
//
// A terminal status is absorbing: once set, further status changes are
// ignored. Progress is clamped to [0, 1] and regressions are dropped.
// Returns true if anything changed.
func (p *JobPatch) Apply(j *Job, now time.Time) bool {
	changed := false

	if p.Status != nil && *p.Status != j.Status && !j.Status.IsTerminal() {
		j.Status = *p.Status
		changed = true
	}

	if p.Progress != nil {
		v := clamp01(*p.Progress)
		if v > j.Progress {
			j.Progress = v
			if j.FirstProgressAt == nil {
				t := now
				j.FirstProgressAt = &t
			}
			t := now
			j.LastProgressAt = &t
			changed = true
		}
	}

	if p.TilesProcessed != nil && *p.TilesProcessed >= 0 && *p.TilesProcessed != j.TilesProcessed {
		j.TilesProcessed = *p.TilesProcessed
		changed = true
	}
	if p.TilesTotal != nil && *p.TilesTotal >= 0 && *p.TilesTotal != j.TilesTotal {
		j.TilesTotal = *p.TilesTotal
		changed = true
	}
	if p.ErrorMessage != nil && j.ErrorMessage == "" {
		j.ErrorMessage = *p.ErrorMessage
		changed = true
	}
	if p.ResultPath != nil && j.ResultPath == "" {
		j.ResultPath = *p.ResultPath
		changed = true
	}
	if p.StartedAt != nil && j.StartedAt == nil {
		j.StartedAt = cloneTime(p.StartedAt)
		changed = true
	}
	if p.FinishedAt != nil && j.FinishedAt == nil {
		j.FinishedAt = cloneTime(p.FinishedAt)
		changed = true
	}

	return changed
}

// StatusPatch is a convenience constructor for a status-only patch.
func StatusPatch(s Status) *JobPatch {
	return &JobPatch{Status: &s}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
