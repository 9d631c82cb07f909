package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohitkumar/dagforge/admission"
	"github.com/mohitkumar/dagforge/cache"
	"github.com/mohitkumar/dagforge/compiler"
	"github.com/mohitkumar/dagforge/engine/enginetest"
	"github.com/mohitkumar/dagforge/persistence/memory"
	"github.com/mohitkumar/dagforge/service"
	"github.com/mohitkumar/dagforge/statussync"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	engine  *enginetest.Fake
	fs      afero.Fs
}

func newTestServer(t *testing.T) *testServer {
	storage := memory.NewMemoryStorage()
	fake := enginetest.NewFake()
	fs := afero.NewMemMapFs()
	comp, err := compiler.NewCompiler(compiler.FORMAT_YAML, fs, "/dags")
	require.NoError(t, err)
	bridge := admission.NewBridge(fake, admission.NewRetryPolicy(2, 0, nil))
	s, err := NewServer(0, Services{
		Workflows:  service.NewWorkflowService(storage, comp, bridge, cache.NewPauseStateCache(time.Minute)),
		Tasks:      service.NewTaskService(storage),
		Jobs:       service.NewJobService(storage, fake, bridge, statussync.NewSynchronizer(fake, storage, time.Second)),
		Monitoring: service.NewMonitoringService(storage, fake),
	})
	require.NoError(t, err)
	return &testServer{handler: s.Handler, engine: fake, fs: fs}
}

func (ts *testServer) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) createWorkflow(t *testing.T, name string) string {
	rec := ts.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func (ts *testServer) createTask(t *testing.T, workflowId string, name string, deps ...string) string {
	rec := ts.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"workflow_id":  workflowId,
		"name":         name,
		"source":       "print('" + name + "')",
		"dependencies": deps,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func TestWorkflowEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createWorkflow(t, "etl")

	rec := ts.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"name": "etl"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "already exists")

	rec = ts.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/workflows", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "etl", body["name"])
	assert.Equal(t, true, body["is_active"])
	assert.Nil(t, body["is_paused_in_engine"])

	rec = ts.do(t, http.MethodPut, "/api/v1/workflows/"+id, map[string]any{"schedule": "@daily"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "@daily", decode(t, rec)["schedule"])

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows?skip=0&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/workflows/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/v1/workflows/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeployEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createWorkflow(t, "W")

	rec := ts.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/deploy", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.createTask(t, id, "C", "Z")
	rec = ts.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/deploy", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "task 'C' has invalid dependency 'Z'")

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows/"+id+"/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode(t, rec)["tasks"].([]any)
	require.Len(t, tasks, 1)
	taskId := tasks[0].(map[string]any)["id"].(string)

	rec = ts.do(t, http.MethodPut, "/api/v1/tasks/"+taskId, map[string]any{"dependencies": []string{}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ts.engine.AddPipeline("workflow_"+id, true)
	rec = ts.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/deploy", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "/dags/workflow_"+id+".yaml", body["artifact_path"])
	assert.Equal(t, true, body["unpaused"])

	exists, err := afero.Exists(ts.fs, "/dags/workflow_"+id+".yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	rec = ts.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/v1/workflows/"+id, nil)
	assert.Equal(t, true, decode(t, rec)["is_paused_in_engine"])
}

func TestUnpauseFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createWorkflow(t, "W")
	rec := ts.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/unpause", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "status 404")

	rec = ts.do(t, http.MethodPost, "/api/v1/workflows/unpause-all-active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(0), body["success_count"])
	assert.Equal(t, float64(1), body["failed_count"])
}

func TestJobEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createWorkflow(t, "W")

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/trigger/"+id, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	ts.engine.AddPipeline("workflow_"+id, false)
	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/trigger/"+id, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode(t, rec)
	assert.Equal(t, "running", run["status"])
	assert.Equal(t, "manual", run["triggered_by"])
	runId := run["id"].(string)

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs/"+runId, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs?workflow_id="+id+"&status=running", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs?status=exploded", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.engine.SetLog("workflow_"+id, run["engine_run_id"].(string), "extract", 1, "done")
	rec = ts.do(t, http.MethodGet, "/api/v1/jobs/"+runId+"/logs/extract", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", decode(t, rec)["logs"])

	rec = ts.do(t, http.MethodPut, "/api/v1/workflows/"+id, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/trigger/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManifestEndpoints(t *testing.T) {
	ts := newTestServer(t)
	manifest := `version: "1.0"
workflow:
  name: imported
tasks:
  - name: a
    source: "print(1)"
  - name: b
    source: "print(2)"
    dependencies: [a]
`
	rec := ts.do(t, http.MethodPost, "/api/v1/workflows/validate", manifest)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = ts.do(t, http.MethodPost, "/api/v1/workflows/import", manifest)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["workflow"].(map[string]any)["id"].(string)

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "imported.yaml")
	assert.True(t, strings.Contains(rec.Body.String(), "name: imported"))

	rec = ts.do(t, http.MethodPost, "/api/v1/workflows/import", "tasks: []")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitoringEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createWorkflow(t, "W")

	rec := ts.do(t, http.MethodGet, "/api/v1/monitoring/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workflows := decode(t, rec)["workflows"].(map[string]any)
	assert.Equal(t, float64(1), workflows["active"])

	ts.engine.SetHealthy(false)
	rec = ts.do(t, http.MethodGet, "/api/v1/monitoring/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])

	rec = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
