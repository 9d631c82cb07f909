package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/dagforge/model"
)

func (s *Server) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var spec model.TaskSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	task, err := s.tasks.CreateTask(r.Context(), spec)
	if err != nil {
		respondWithServiceError(w, "error creating task", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, task)
}

func (s *Server) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "error getting task", err)
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var update model.TaskUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	task, err := s.tasks.UpdateTask(r.Context(), mux.Vars(r)["id"], update)
	if err != nil {
		respondWithServiceError(w, "error updating task", err)
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.DeleteTask(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "error deleting task", err)
		return
	}
	respondNoContent(w)
}
