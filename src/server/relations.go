package server

import (
	"net/http"
	"strconv"

	"archivum/src/domain/entities"
)

func (s *Server) AddRelation(w http.ResponseWriter, r *http.Request) {
	var rel entities.Relation
	if err := decodeBody(r, &rel); err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.repo.AddRelation(r.Context(), &rel, changeFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) GetRelation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rel, err := s.repo.GetRelation(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rel == nil {
		s.writeNotFound(w, entities.KindRelation, id)
		return
	}
	s.writeJSON(w, http.StatusOK, rel)
}

// GetRelations lists relations, optionally filtered by ?sourceId= or
// ?targetId=. With ?typeId= and both endpoints it resolves the single
// relation instead.
func (s *Server) GetRelations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("typeId") != "" && q.Get("sourceId") != "" && q.Get("targetId") != "" {
		rel, err := s.repo.FindRelation(r.Context(), q.Get("typeId"), q.Get("sourceId"), q.Get("targetId"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		if rel == nil {
			s.writeNotFound(w, entities.KindRelation, q.Get("typeId"))
			return
		}
		s.writeJSON(w, http.StatusOK, rel)
		return
	}

	var (
		list []*entities.Relation
		err  error
	)
	switch {
	case r.URL.Query().Get("sourceId") != "":
		list, err = s.repo.RelationsBySource(r.Context(), r.URL.Query().Get("sourceId"))
	case r.URL.Query().Get("targetId") != "":
		list, err = s.repo.RelationsByTarget(r.Context(), r.URL.Query().Get("targetId"))
	default:
		list, err = s.repo.GetRelations(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []*entities.Relation{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) GetRelationRevision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rev, err := strconv.Atoi(r.PathValue("rev"))
	if err != nil {
		http.Error(w, "Invalid revision number", http.StatusBadRequest)
		return
	}

	rel, err := s.repo.GetRelationRevision(r.Context(), id, rev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rel == nil {
		s.writeNotFound(w, entities.KindRelation, id)
		return
	}
	s.writeJSON(w, http.StatusOK, rel)
}

func (s *Server) UpdateRelation(w http.ResponseWriter, r *http.Request) {
	var rel entities.Relation
	if err := decodeBody(r, &rel); err != nil {
		s.writeError(w, err)
		return
	}
	rel.Meta().ID = r.PathValue("id")

	if err := s.repo.UpdateRelation(r.Context(), &rel, changeFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) PublishRelation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	pid, err := s.repo.PublishRelation(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pidResponse{PID: pid})
}
