package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
)

func (s *Server) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	run, err := s.jobs.Trigger(r.Context(), mux.Vars(r)["workflowId"])
	if err != nil {
		respondWithServiceError(w, "error triggering workflow", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, run)
}

func (s *Server) HandleListJobRuns(w http.ResponseWriter, r *http.Request) {
	filter := persistence.JobRunFilter{WorkflowId: r.URL.Query().Get("workflow_id")}
	var err error
	if raw := r.URL.Query().Get("status"); raw != "" {
		if filter.Status, err = model.ParseRunStatus(raw); err != nil {
			respondWithServiceError(w, "invalid query", err)
			return
		}
	}
	if filter.Offset, err = queryInt(r, "skip", 0); err != nil {
		respondWithServiceError(w, "invalid query", err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit", DEFAULT_PAGE_SIZE); err != nil {
		respondWithServiceError(w, "invalid query", err)
		return
	}
	list, err := s.jobs.ListJobRuns(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, "error listing job runs", err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) HandleGetJobRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.jobs.GetJobRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "error getting job run", err)
		return
	}
	respondWithJSON(w, http.StatusOK, run)
}

func (s *Server) HandleGetTaskLogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	attempt, err := queryInt(r, "attempt", 1)
	if err != nil {
		respondWithServiceError(w, "invalid query", err)
		return
	}
	log, err := s.jobs.TaskLogs(r.Context(), vars["id"], vars["task"], attempt)
	if err != nil {
		respondWithServiceError(w, "error fetching task logs", err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}
