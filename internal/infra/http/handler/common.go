// Package handler implements the HTTP handlers for the control API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/apierror"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps any error to its API error response.
func writeError(w http.ResponseWriter, err error) {
	apierror.FromError(err).WriteJSON(w)
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return apierror.New(http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "Request body too large")
		}
		return apierror.BadRequest("Invalid JSON body").WithError(err)
	}
	return nil
}

// JobResponse is the wire representation of a job.
type JobResponse struct {
	JobID          string   `json:"job_id"`
	JobType        string   `json:"job_type"`
	Status         string   `json:"status"`
	Branch         string   `json:"branch"`
	DependsOn      []string `json:"depends_on,omitempty"`
	ImagePath      string   `json:"image_path"`
	Progress       float64  `json:"progress"`
	TilesProcessed int      `json:"tiles_processed"`
	TilesTotal     int      `json:"tiles_total"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`

	ResultPath   string `json:"result_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	ElapsedTimeSeconds        *float64 `json:"elapsed_time_seconds,omitempty"`
	EstimatedRemainingSeconds *float64 `json:"estimated_remaining_seconds,omitempty"`
}

// WorkflowResponse is the wire representation of a workflow.
type WorkflowResponse struct {
	WorkflowID    string        `json:"workflow_id"`
	Name          string        `json:"name"`
	Status        string        `json:"status"`
	Progress      float64       `json:"progress"`
	JobCount      int           `json:"job_count"`
	JobsCompleted int           `json:"jobs_completed"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at"`
	Jobs          []JobResponse `json:"jobs"`
}

func toJobResponse(j *workflow.Job, now time.Time) JobResponse {
	return JobResponse{
		JobID:                     j.JobID,
		JobType:                   string(j.Type),
		Status:                    string(j.Status),
		Branch:                    j.Branch,
		DependsOn:                 j.DependsOn,
		ImagePath:                 j.ImagePath,
		Progress:                  j.Progress,
		TilesProcessed:            j.TilesProcessed,
		TilesTotal:                j.TilesTotal,
		CreatedAt:                 j.CreatedAt,
		StartedAt:                 j.StartedAt,
		FinishedAt:                j.FinishedAt,
		ResultPath:                j.ResultPath,
		ErrorMessage:              j.ErrorMessage,
		ElapsedTimeSeconds:        j.ElapsedSeconds(now),
		EstimatedRemainingSeconds: j.ETASeconds(now),
	}
}

func toWorkflowResponse(w *workflow.Workflow) WorkflowResponse {
	now := time.Now().UTC()
	jobs := make([]JobResponse, len(w.Jobs))
	for i, j := range w.Jobs {
		jobs[i] = toJobResponse(j, now)
	}
	return WorkflowResponse{
		WorkflowID:    w.WorkflowID,
		Name:          w.Name,
		Status:        string(w.Status()),
		Progress:      w.Progress(),
		JobCount:      len(w.Jobs),
		JobsCompleted: w.JobsCompleted(),
		CreatedAt:     w.CreatedAt,
		StartedAt:     w.StartedAt,
		FinishedAt:    w.FinishedAt,
		Jobs:          jobs,
	}
}
