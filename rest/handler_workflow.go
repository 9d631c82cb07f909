package rest

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/dagforge/model"
)

const DEFAULT_PAGE_SIZE int = 100

func (s *Server) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var spec model.WorkflowSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	wf, err := s.workflows.CreateWorkflow(r.Context(), spec)
	if err != nil {
		respondWithServiceError(w, "error creating workflow", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, wf)
}

func (s *Server) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		respondWithServiceError(w, "invalid query", err)
		return
	}
	limit, err := queryInt(r, "limit", DEFAULT_PAGE_SIZE)
	if err != nil {
		respondWithServiceError(w, "invalid query", err)
		return
	}
	list, err := s.workflows.ListWorkflows(r.Context(), skip, limit)
	if err != nil {
		respondWithServiceError(w, "error listing workflows", err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	view, err := s.workflows.GetWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "error getting workflow", err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (s *Server) HandleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var update model.WorkflowUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	wf, err := s.workflows.UpdateWorkflow(r.Context(), mux.Vars(r)["id"], update)
	if err != nil {
		respondWithServiceError(w, "error updating workflow", err)
		return
	}
	respondWithJSON(w, http.StatusOK, wf)
}

func (s *Server) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflows.DeleteWorkflow(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "error deleting workflow", err)
		return
	}
	respondNoContent(w)
}

func (s *Server) HandleDeployWorkflow(w http.ResponseWriter, r *http.Request) {
	d, err := s.workflows.DeployWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "error deploying workflow", err)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

func (s *Server) HandlePauseWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.workflows.PauseWorkflow(r.Context(), id); err != nil {
		respondWithServiceError(w, "error pausing workflow", err)
		return
	}
	respondOK(w, map[string]any{"message": "workflow paused", "pipeline_id": model.PipelineIdFor(id)})
}

func (s *Server) HandleUnpauseWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.workflows.UnpauseWorkflow(r.Context(), id); err != nil {
		respondWithServiceError(w, "error unpausing workflow", err)
		return
	}
	respondOK(w, map[string]any{"message": "workflow unpaused", "pipeline_id": model.PipelineIdFor(id)})
}

func (s *Server) HandleUnpauseAllActive(w http.ResponseWriter, r *http.Request) {
	res, err := s.workflows.UnpauseAllActive(r.Context())
	if err != nil {
		respondWithServiceError(w, "error unpausing workflows", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) HandleListWorkflowTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.workflows.ListTasks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "error listing tasks", err)
		return
	}
	respondWithJSON(w, http.StatusOK, tasks)
}

func (s *Server) HandleExportWorkflow(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.workflows.ExportWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "error exporting workflow", err)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func readManifest(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MAX_BODY_BYTES))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	return data, true
}

func (s *Server) HandleImportWorkflow(w http.ResponseWriter, r *http.Request) {
	data, ok := readManifest(w, r)
	if !ok {
		return
	}
	res, err := s.workflows.ImportWorkflow(r.Context(), data)
	if err != nil {
		respondWithServiceError(w, "error importing workflow", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

func (s *Server) HandleValidateManifest(w http.ResponseWriter, r *http.Request) {
	data, ok := readManifest(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, s.workflows.ValidateManifest(data))
}
