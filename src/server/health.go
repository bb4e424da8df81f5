package server

import "net/http"

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if !s.repo.IsAvailable(r.Context()) {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
