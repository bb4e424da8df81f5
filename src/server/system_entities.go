package server

import (
	"net/http"

	"archivum/src/domain/entities"
)

func (s *Server) AddSystemEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	e, err := s.decodeEntity(r, kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.repo.AddSystemEntity(r.Context(), e)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) GetSystemEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	e, err := s.repo.GetSystemEntity(r.Context(), kind, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if e == nil {
		s.writeNotFound(w, kind, id)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) GetSystemEntities(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	list, err := s.repo.GetSystemEntities(r.Context(), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []entities.Entity{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) UpdateSystemEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	e, err := s.decodeEntity(r, kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	e.Meta().ID = r.PathValue("id")

	if err := s.repo.UpdateSystemEntity(r.Context(), e, changeFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) DeleteSystemEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	count, err := s.repo.DeleteSystemEntity(r.Context(), kind, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deletedResponse{Deleted: count})
}
