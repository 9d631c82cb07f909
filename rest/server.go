package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/service"
	"go.uber.org/zap"
)

const API_PREFIX string = "/api/v1"

type Services struct {
	Workflows  *service.WorkflowService
	Tasks      *service.TaskService
	Jobs       *service.JobService
	Monitoring *service.MonitoringService
}

type Server struct {
	http.Server
	Port       int
	workflows  *service.WorkflowService
	tasks      *service.TaskService
	jobs       *service.JobService
	monitoring *service.MonitoringService
}

func NewServer(httpPort int, services Services) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 30 * time.Second,
		},
		Port:       httpPort,
		workflows:  services.Workflows,
		tasks:      services.Tasks,
		jobs:       services.Jobs,
		monitoring: services.Monitoring,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.HandleLiveness).Methods(http.MethodGet)

	api := router.PathPrefix(API_PREFIX).Subrouter()
	api.HandleFunc("/workflows", s.HandleCreateWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows", s.HandleListWorkflows).Methods(http.MethodGet)
	api.HandleFunc("/workflows/unpause-all-active", s.HandleUnpauseAllActive).Methods(http.MethodPost)
	api.HandleFunc("/workflows/import", s.HandleImportWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/validate", s.HandleValidateManifest).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}", s.HandleGetWorkflow).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}", s.HandleUpdateWorkflow).Methods(http.MethodPut)
	api.HandleFunc("/workflows/{id}", s.HandleDeleteWorkflow).Methods(http.MethodDelete)
	api.HandleFunc("/workflows/{id}/deploy", s.HandleDeployWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}/pause", s.HandlePauseWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}/unpause", s.HandleUnpauseWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}/tasks", s.HandleListWorkflowTasks).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}/export", s.HandleExportWorkflow).Methods(http.MethodGet)

	api.HandleFunc("/tasks", s.HandleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.HandleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", s.HandleUpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}", s.HandleDeleteTask).Methods(http.MethodDelete)

	api.HandleFunc("/jobs/trigger/{workflowId}", s.HandleTriggerJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.HandleListJobRuns).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.HandleGetJobRun).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/logs/{task}", s.HandleGetTaskLogs).Methods(http.MethodGet)

	api.HandleFunc("/monitoring/stats", s.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/monitoring/health", s.HandleHealth).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI, zap.String("method", r.Method))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
