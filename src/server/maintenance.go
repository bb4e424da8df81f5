package server

import (
	"net/http"
)

// ListUnpublished returns the ids of the kind's entities that have no
// persistent identifier yet.
func (s *Server) ListUnpublished(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := s.repo.IDsOfNonPersistent(r.Context(), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// DeleteUnpublished removes one PID-less lineage. Published lineages are
// left alone.
func (s *Server) DeleteUnpublished(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.repo.DeleteNonPersistent(r.Context(), kind, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
