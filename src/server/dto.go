package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"archivum/src/domain"
	"archivum/src/domain/entities"
)

type createdResponse struct {
	ID string `json:"id"`
}

type pidResponse struct {
	PID string `json:"pid"`
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// changeFromRequest reads the acting user from the request headers. The
// storage layer records it on every mutation.
func changeFromRequest(r *http.Request) entities.Change {
	return entities.NewChange(r.Header.Get("X-User-Id"), r.Header.Get("X-VRE-Id"))
}

// kindFromRequest resolves the {kind} path segment against the registry.
func (s *Server) kindFromRequest(r *http.Request) (entities.Kind, error) {
	kind := entities.Kind(r.PathValue("kind"))
	if _, ok := s.registry.Info(kind); !ok {
		return "", fmt.Errorf("unknown kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	return kind, nil
}

// decodeEntity instantiates the kind and fills it from the request body.
func (s *Server) decodeEntity(r *http.Request, kind entities.Kind) (entities.Entity, error) {
	e, err := s.registry.New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.NewDecoder(r.Body).Decode(e); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", kind, domain.ErrConversion)
	}
	return e, nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding request payload: %w", domain.ErrConversion)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write JSON response", "error", err)
	}
}

// writeError maps the storage error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUpdateConflict), errors.Is(err, domain.ErrIllegalState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrIllegalArgument), errors.Is(err, domain.ErrConversion):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeNotFound(w http.ResponseWriter, kind entities.Kind, id string) {
	s.writeJSON(w, http.StatusNotFound, errorResponse{
		Error: fmt.Sprintf("%s %s not found", kind, id),
	})
}
