package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
	user   string
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) last() recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func newEngineServer(t *testing.T, rec *recorder) *httptest.Server {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _, _ := r.BasicAuth()
			call := recorded{method: r.Method, path: r.URL.Path, user: user}
			if data, _ := io.ReadAll(r.Body); len(data) > 0 {
				assert.NoError(t, json.Unmarshal(data, &call.body))
			}
			rec.mu.Lock()
			rec.calls = append(rec.calls, call)
			rec.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	writeJSON := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}
	api.HandleFunc("/dags/{dag_id}", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["dag_id"]
		if id == "workflow_missing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"title": "DAG not found", "detail": "DAG with dag_id: 'workflow_missing' not found", "status": 404})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dag_id": id, "is_paused": true, "is_active": true})
	}).Methods(http.MethodGet, http.MethodPatch)
	api.HandleFunc("/dags/{dag_id}/dagRuns", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"dag_run_id": "manual__2024-01-01T00:00:00+00:00", "dag_id": mux.Vars(r)["dag_id"], "state": "queued"})
	}).Methods(http.MethodPost)
	api.HandleFunc("/dags/{dag_id}/dagRuns/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"dag_run_id": mux.Vars(r)["run_id"], "state": "success", "start_date": "2024-01-01T00:00:00+00:00", "end_date": nil})
	}).Methods(http.MethodGet)
	api.HandleFunc("/dags/{dag_id}/dagRuns/{run_id}/taskInstances/{task_id}/logs/{try}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("task " + mux.Vars(r)["task_id"] + " try " + mux.Vars(r)["try"]))
	}).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"metadatabase": map[string]string{"status": "healthy"}})
	})
	return httptest.NewServer(router)
}

func TestRestClient(t *testing.T) {
	rec := &recorder{}
	srv := newEngineServer(t, rec)
	defer srv.Close()

	client := NewRestClient(Config{BaseURL: srv.URL + "/api/v1/", Username: "admin", Password: "secret", Timeout: 2 * time.Second})
	ctx := context.Background()

	p, err := client.GetPipeline(ctx, "workflow_1")
	require.NoError(t, err)
	assert.Equal(t, "workflow_1", p.Id)
	assert.True(t, p.IsPaused)

	_, err = client.GetPipeline(ctx, "workflow_missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var engineErr *Error
	require.ErrorAs(t, err, &engineErr)
	assert.Contains(t, engineErr.Message, "not found")

	require.NoError(t, client.SetPaused(ctx, "workflow_1", false))
	last := rec.last()
	assert.Equal(t, http.MethodPatch, last.method)
	assert.Equal(t, false, last.body["is_paused"])
	assert.Equal(t, "admin", last.user)

	run, err := client.TriggerRun(ctx, "workflow_1", nil)
	require.NoError(t, err)
	assert.Equal(t, "manual__2024-01-01T00:00:00+00:00", run.Id)
	assert.Equal(t, map[string]any{}, rec.last().body["conf"])

	run, err = client.GetRun(ctx, "workflow_1", "manual__1")
	require.NoError(t, err)
	assert.Equal(t, "success", run.State)
	require.NotNil(t, run.StartDate)
	assert.Nil(t, run.EndDate)

	text, err := client.GetTaskLog(ctx, "workflow_1", "manual__1", "extract", 2)
	require.NoError(t, err)
	assert.Equal(t, "task extract try 2", text)

	assert.True(t, client.Health(ctx))
}

func TestRestClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewRestClient(Config{BaseURL: url + "/api/v1", Timeout: time.Second})
	_, err := client.GetPipeline(context.Background(), "workflow_1")
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.False(t, IsNotFound(err))
	assert.False(t, client.Health(context.Background()))
}

func TestRestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRestClient(Config{BaseURL: srv.URL + "/api/v1"})
	_, err := client.TriggerRun(context.Background(), "workflow_1", map[string]any{"k": "v"})
	var engineErr *Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, http.StatusInternalServerError, engineErr.StatusCode)
	assert.Equal(t, "boom", engineErr.Message)
	assert.False(t, IsNotFound(err))
}
