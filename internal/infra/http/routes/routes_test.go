package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/bus"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/imaging"
	infrahttp "github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http/routes"
	wsinfra "github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/websocket"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/validator"
)

type apiFixture struct {
	t      *testing.T
	server *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cfg := &config.Config{
		App:    config.AppConfig{Name: "test", Env: "development"},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8000, RequestTimeout: 10 * time.Second, MaxBodySize: 1 << 20},
		Log:    config.LogConfig{Level: "error", Format: "json"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-User-ID"},
			MaxAge:         300,
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Scheduler: config.SchedulerConfig{
			MaxWorkers:       4,
			MaxActiveUsers:   3,
			EventMailboxSize: 64,
			LatencyWindow:    time.Minute,
		},
	}

	log := logger.NewNop()
	storage, err := imaging.NewStorage(t.TempDir())
	require.NoError(t, err)

	// A fast executor that still writes a real result document, so the
	// result-retrieval endpoint has something to serve.
	exec := app.ExecutorFunc(func(_ context.Context, job *workflow.Job, report app.ProgressSink) (string, error) {
		report(1.0, 1, 1)
		return storage.Save(job.JobID, "segmentation", map[string]any{
			"job_id":    job.JobID,
			"num_cells": 7,
		})
	})
	executors := app.NewExecutorRegistry()
	executors.Register(workflow.JobTypeCellSegmentation, exec)
	executors.Register(workflow.JobTypeTissueMask, exec)

	eventBus := bus.New(cfg.Scheduler.EventMailboxSize, log)
	pool := app.NewWorkerPool(cfg.Scheduler.MaxWorkers, log)
	engine := app.NewEngine(cfg.Scheduler, executors, pool, eventBus, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)
	go engine.Run(ctx)

	srv := infrahttp.NewServer(cfg, log)
	hub := wsinfra.NewHub(log)
	t.Cleanup(hub.CloseAll)

	routes.Setup(srv.Router(), &routes.Dependencies{
		Config:    cfg,
		Engine:    engine,
		Storage:   storage,
		Hub:       hub,
		Validator: validator.New(),
		Logger:    log,
	})

	ts := httptest.NewServer(srv.Router().Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{t: t, server: ts}
}

func (f *apiFixture) do(method, path, tenant string, body any) (*http.Response, []byte) {
	f.t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reqBody)
	require.NoError(f.t, err)
	if tenant != "" {
		req.Header.Set("X-User-ID", tenant)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	resp.Body.Close()
	return resp, data
}

func (f *apiFixture) submitWorkflow(tenant string, spec *workflow.Spec) map[string]any {
	f.t.Helper()
	resp, body := f.do(http.MethodPost, "/api/workflows", tenant, spec)
	require.Equal(f.t, http.StatusCreated, resp.StatusCode, "body: %s", body)

	var out map[string]any
	require.NoError(f.t, json.Unmarshal(body, &out))
	return out
}

func (f *apiFixture) waitWorkflowStatus(tenant, workflowID, want string) map[string]any {
	f.t.Helper()
	var out map[string]any
	require.Eventually(f.t, func() bool {
		resp, body := f.do(http.MethodGet, "/api/workflows/"+workflowID, tenant, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		out = nil
		if err := json.Unmarshal(body, &out); err != nil {
			return false
		}
		return out["status"] == want
	}, 5*time.Second, 10*time.Millisecond)
	return out
}

func simpleSpec(jobID string) *workflow.Spec {
	return &workflow.Spec{
		Name: "api-test",
		Jobs: []workflow.JobSpec{
			{JobID: jobID, JobType: workflow.JobTypeCellSegmentation, ImagePath: "/data/s.svs", Branch: "main"},
		},
	}
}

func TestAPI_TenantHeaderRequired(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(http.MethodGet, "/api/workflows", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "TENANT_MISSING")
}

func TestAPI_CreateAndGetWorkflow(t *testing.T) {
	f := newAPIFixture(t)

	created := f.submitWorkflow("t1", simpleSpec("a"))
	workflowID, _ := created["workflow_id"].(string)
	require.NotEmpty(t, workflowID)
	assert.EqualValues(t, 1, created["job_count"])

	done := f.waitWorkflowStatus("t1", workflowID, "SUCCEEDED")
	jobs, ok := done["jobs"].([]any)
	require.True(t, ok)
	require.Len(t, jobs, 1)
	job := jobs[0].(map[string]any)
	assert.Equal(t, "SUCCEEDED", job["status"])
	assert.NotEmpty(t, job["result_path"])
}

func TestAPI_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/workflows", strings.NewReader("{nope"))
		require.NoError(t, err)
		req.Header.Set("X-User-ID", "t1")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown job type", func(t *testing.T) {
		spec := simpleSpec("a")
		spec.Jobs[0].JobType = "sharpen"
		resp, body := f.do(http.MethodPost, "/api/workflows", "t1", spec)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, string(body), "VALIDATION_FAILED")
	})

	t.Run("cycle", func(t *testing.T) {
		spec := &workflow.Spec{
			Name: "cyclic",
			Jobs: []workflow.JobSpec{
				{JobID: "a", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"b"}},
				{JobID: "b", JobType: workflow.JobTypeTissueMask, ImagePath: "/x", Branch: "b", DependsOn: []string{"a"}},
			},
		}
		resp, body := f.do(http.MethodPost, "/api/workflows", "t1", spec)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, string(body), "cycle")
	})
}

func TestAPI_TenantIsolation(t *testing.T) {
	f := newAPIFixture(t)

	created := f.submitWorkflow("t1", simpleSpec("a"))
	workflowID := created["workflow_id"].(string)

	resp, _ := f.do(http.MethodGet, "/api/workflows/"+workflowID, "t2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := f.do(http.MethodGet, "/api/workflows", "t2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []any
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Empty(t, listed)
}

func TestAPI_JobResultsAndCancel(t *testing.T) {
	f := newAPIFixture(t)

	created := f.submitWorkflow("t1", simpleSpec("seg"))
	workflowID := created["workflow_id"].(string)
	f.waitWorkflowStatus("t1", workflowID, "SUCCEEDED")

	resp, body := f.do(http.MethodGet, "/api/jobs/seg/results", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	var results map[string]any
	require.NoError(t, json.Unmarshal(body, &results))
	inner, ok := results["results"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, inner["num_cells"])

	// The job already succeeded: cancellation must be rejected.
	resp, body = f.do(http.MethodDelete, "/api/jobs/seg", "t1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "NOT_CANCELLABLE")
}

func TestAPI_WorkflowProgressEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	created := f.submitWorkflow("t1", simpleSpec("a"))
	workflowID := created["workflow_id"].(string)
	f.waitWorkflowStatus("t1", workflowID, "SUCCEEDED")

	resp, body := f.do(http.MethodGet, "/api/progress/workflow/"+workflowID, "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var progress map[string]any
	require.NoError(t, json.Unmarshal(body, &progress))
	assert.EqualValues(t, 1, progress["jobs_completed"])
	assert.EqualValues(t, 1, progress["jobs_total"])
	assert.InDelta(t, 1.0, progress["progress"].(float64), 1e-9)
}

func TestAPI_DashboardAndHealth(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(http.MethodGet, "/api/metrics/dashboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash map[string]any
	require.NoError(t, json.Unmarshal(body, &dash))
	assert.Contains(t, dash, "active_workers")
	assert.Contains(t, dash, "queue_depth")
	assert.Contains(t, dash, "job_latency")
	assert.Contains(t, dash, "active_users")
	assert.Contains(t, dash, "system_health")

	resp, body = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}

func TestAPI_ProgressWebSocket(t *testing.T) {
	f := newAPIFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/progress/ws/t1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Ping is answered with a pong.
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var pong map[string]any
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	// Events for the tenant flow over the stream, ending with the
	// terminal workflow status.
	f.submitWorkflow("t1", simpleSpec("a"))

	sawRunning := false
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		if ev["type"] == "job_status" && ev["status"] == "RUNNING" {
			sawRunning = true
		}
		if ev["type"] == "workflow_status" {
			assert.Equal(t, "SUCCEEDED", ev["status"])
			break
		}
	}
	assert.True(t, sawRunning)
}

func TestAPI_AdmissionRejectionSurfaced(t *testing.T) {
	f := newAPIFixture(t)

	// The executor is instant, so whether tenants are still active when the
	// next one submits depends on timing. Submit in a row from six distinct
	// tenants (more than the cap) and require every response to be either
	// accepted or the 429 admission rejection, with at least one accepted.
	accepted := 0
	rejected := 0
	for i := 0; i < 12; i++ {
		tenant := fmt.Sprintf("t%d", i%6)
		resp, _ := f.do(http.MethodPost, "/api/workflows", tenant, simpleSpec(fmt.Sprintf("j%d", i)))
		switch resp.StatusCode {
		case http.StatusCreated:
			accepted++
		case http.StatusTooManyRequests:
			rejected++
		default:
			t.Fatalf("unexpected status %d", resp.StatusCode)
		}
	}
	assert.Positive(t, accepted)
}
