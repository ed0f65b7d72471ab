package workflow

import (
	"fmt"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
)

// Spec is a workflow submission before any state is written.
type Spec struct {
	Name string    `json:"name" yaml:"name"`
	Jobs []JobSpec `json:"jobs" yaml:"jobs" validate:"required,min=1,dive"`
}

// JobSpec describes a single job within a submission.
type JobSpec struct {
	JobID     string   `json:"job_id" yaml:"job_id" validate:"required"`
	JobType   JobType  `json:"job_type" yaml:"job_type" validate:"required,job_type"`
	ImagePath string   `json:"image_path" yaml:"image_path" validate:"required"`
	Branch    string   `json:"branch" yaml:"branch" validate:"required"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Validate checks the structural submission rules: at least one job, unique
// job ids, known job types, non-empty branch and image path, dependencies
// confined to the workflow, and an acyclic dependency graph. It returns a
// validation DomainError on the first violation; no state is written by
// callers before Validate passes.
func (s *Spec) Validate() error {
	if len(s.Jobs) == 0 {
		return validationErr("workflow must contain at least one job")
	}

	ids := make(map[string]bool, len(s.Jobs))
	for _, js := range s.Jobs {
		if js.JobID == "" {
			return validationErr("job_id is required")
		}
		if ids[js.JobID] {
			return validationErr("duplicate job_id: " + js.JobID)
		}
		ids[js.JobID] = true
	}

	for _, js := range s.Jobs {
		if !js.JobType.IsValid() {
			return validationErr(fmt.Sprintf("unknown job_type %q for job %s", js.JobType, js.JobID))
		}
		if js.Branch == "" {
			return validationErr("branch is required for job " + js.JobID)
		}
		if js.ImagePath == "" {
			return validationErr("image_path is required for job " + js.JobID)
		}
		for _, dep := range js.DependsOn {
			if !ids[dep] {
				return validationErr(fmt.Sprintf("job %s depends on unknown job %s", js.JobID, dep))
			}
			if dep == js.JobID {
				return validationErr("job " + js.JobID + " depends on itself")
			}
		}
	}

	if cycle := s.findCycle(); cycle != "" {
		return validationErr("dependency cycle involving job " + cycle)
	}
	return nil
}

// findCycle runs a recursive DFS over the dependency edges and returns the
// id of a job on a cycle, or "".
func (s *Spec) findCycle() string {
	deps := make(map[string][]string, len(s.Jobs))
	for _, js := range s.Jobs {
		deps[js.JobID] = js.DependsOn
	}

	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(deps))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = grey
		for _, dep := range deps[id] {
			switch color[dep] {
			case grey:
				return dep
			case white:
				if c := visit(dep); c != "" {
					return c
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, js := range s.Jobs {
		if color[js.JobID] == white {
			if c := visit(js.JobID); c != "" {
				return c
			}
		}
	}
	return ""
}

func validationErr(msg string) error {
	return shared.NewDomainError("VALIDATION", msg, shared.ErrValidation)
}
