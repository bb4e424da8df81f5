package server

import (
	"net/http"
	"strconv"

	"archivum/src/domain/entities"
)

func (s *Server) AddDomainEntity(w http.ResponseWriter, r *http.Request) {
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
	id, err := s.repo.AddDomainEntity(r.Context(), e, changeFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) GetDomainEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	// ?strict=true serves only a stored revision of the exact kind, without
	// falling back to the primitive's shape.
	var e entities.Entity
	if r.URL.Query().Get("strict") == "true" {
		e, err = s.repo.GetDomainEntity(r.Context(), kind, id)
	} else {
		e, err = s.repo.GetEntityOrDefaultVariation(r.Context(), kind, id)
	}
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

func (s *Server) GetDomainEntities(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// ?field=&value= looks a single entity up by one domain field.
	if field := r.URL.Query().Get("field"); field != "" {
		e, err := s.repo.FindEntityByProperty(r.Context(), kind, field, r.URL.Query().Get("value"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		if e == nil {
			s.writeNotFound(w, kind, r.URL.Query().Get("value"))
			return
		}
		s.writeJSON(w, http.StatusOK, e)
		return
	}

	list, err := s.repo.GetDomainEntities(r.Context(), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []entities.Entity{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) GetDomainEntityRevision(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	rev, err := strconv.Atoi(r.PathValue("rev"))
	if err != nil {
		http.Error(w, "Invalid revision number", http.StatusBadRequest)
		return
	}

	e, err := s.repo.GetRevision(r.Context(), kind, id, rev)
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

func (s *Server) GetAllVariations(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	list, err := s.repo.GetAllVariations(r.Context(), kind, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(list) == 0 {
		s.writeNotFound(w, kind, id)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) AddVariant(w http.ResponseWriter, r *http.Request) {
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

	if err := s.repo.AddVariant(r.Context(), e, changeFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) UpdateDomainEntity(w http.ResponseWriter, r *http.Request) {
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

	if err := s.repo.UpdateDomainEntity(r.Context(), e, changeFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) DeleteDomainEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	if err := s.repo.DeleteDomainEntity(r.Context(), kind, id, changeFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) PublishDomainEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")

	pid, err := s.repo.PublishDomainEntity(r.Context(), kind, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pidResponse{PID: pid})
}
