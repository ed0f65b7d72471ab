package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
)

func validSpec() *workflow.Spec {
	return &workflow.Spec{
		Name: "slide-1",
		Jobs: []workflow.JobSpec{
			{JobID: "mask", JobType: workflow.JobTypeTissueMask, ImagePath: "/data/slide-1.svs", Branch: "main"},
			{JobID: "cells", JobType: workflow.JobTypeCellSegmentation, ImagePath: "/data/slide-1.svs", Branch: "main", DependsOn: []string{"mask"}},
		},
	}
}

func TestSpec_Validate(t *testing.T) {
	t.Run("valid spec", func(t *testing.T) {
		assert.NoError(t, validSpec().Validate())
	})

	t.Run("no jobs", func(t *testing.T) {
		spec := &workflow.Spec{Name: "empty"}
		err := spec.Validate()
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("duplicate job ids", func(t *testing.T) {
		spec := validSpec()
		spec.Jobs[1].JobID = "mask"
		spec.Jobs[1].DependsOn = nil
		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate job_id")
	})

	t.Run("unknown dependency", func(t *testing.T) {
		spec := validSpec()
		spec.Jobs[1].DependsOn = []string{"nope"}
		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown job")
	})

	t.Run("self dependency", func(t *testing.T) {
		spec := validSpec()
		spec.Jobs[0].DependsOn = []string{"mask"}
		err := spec.Validate()
		require.Error(t, err)
	})

	t.Run("unknown job type", func(t *testing.T) {
		spec := validSpec()
		spec.Jobs[0].JobType = "nuclei_detection"
		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job_type")
	})

	t.Run("empty branch", func(t *testing.T) {
		spec := validSpec()
		spec.Jobs[0].Branch = ""
		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "branch")
	})

	t.Run("empty image path", func(t *testing.T) {
		spec := validSpec()
		spec.Jobs[1].ImagePath = ""
		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image_path")
	})

	t.Run("two-node cycle", func(t *testing.T) {
		spec := &workflow.Spec{
			Name: "cyclic",
			Jobs: []workflow.JobSpec{
				{JobID: "a", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"b"}},
				{JobID: "b", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"a"}},
			},
		}
		err := spec.Validate()
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("longer cycle behind a chain", func(t *testing.T) {
		spec := &workflow.Spec{
			Name: "cyclic",
			Jobs: []workflow.JobSpec{
				{JobID: "root", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b"},
				{JobID: "a", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"root", "c"}},
				{JobID: "b", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"a"}},
				{JobID: "c", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"b"}},
			},
		}
		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("diamond is acyclic", func(t *testing.T) {
		spec := &workflow.Spec{
			Name: "diamond",
			Jobs: []workflow.JobSpec{
				{JobID: "a", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b"},
				{JobID: "b", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"a"}},
				{JobID: "c", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"a"}},
				{JobID: "d", JobType: workflow.JobTypeCellSegmentation, ImagePath: "/x", Branch: "b", DependsOn: []string{"b", "c"}},
			},
		}
		assert.NoError(t, spec.Validate())
	})
}

func TestNew_BuildsPendingJobs(t *testing.T) {
	spec := validSpec()
	w := workflow.New("t1", spec)

	require.Len(t, w.Jobs, 2)
	assert.NotEmpty(t, w.WorkflowID)
	assert.Equal(t, "t1", w.TenantID)
	assert.Equal(t, workflow.StatusPending, w.Status())
	for _, j := range w.Jobs {
		assert.Equal(t, workflow.StatusPending, j.Status)
		assert.Equal(t, "t1", j.TenantID)
		assert.Equal(t, w.WorkflowID, j.WorkflowID)
		assert.Zero(t, j.Progress)
	}
}
