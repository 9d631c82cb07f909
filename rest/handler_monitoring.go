package rest

import (
	"net/http"

	"github.com/mohitkumar/dagforge/service"
)

func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]any{"status": service.HEALTH_HEALTHY})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.monitoring.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, "error collecting stats", err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.monitoring.Health(r.Context()))
}
