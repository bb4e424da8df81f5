package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"archivum/src/domain"
	"archivum/src/services/repository"
)

type Server struct {
	logger   *slog.Logger
	server   *http.Server
	mux      *http.ServeMux
	port     int
	repo     *repository.Repository
	registry *domain.Registry
}

func NewServer(
	logger *slog.Logger,
	port int,
	repo *repository.Repository,
	registry *domain.Registry,
) *Server {
	server := &Server{
		mux:      http.NewServeMux(),
		port:     port,
		logger:   logger,
		repo:     repo,
		registry: registry,
	}

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	server.mux.HandleFunc("GET /healthcheck", server.HealthCheck)

	server.mux.HandleFunc("POST /v1/domain/{kind}", server.AddDomainEntity)
	server.mux.HandleFunc("GET /v1/domain/{kind}", server.GetDomainEntities)
	server.mux.HandleFunc("GET /v1/domain/{kind}/{id}", server.GetDomainEntity)
	server.mux.HandleFunc("PUT /v1/domain/{kind}/{id}", server.UpdateDomainEntity)
	server.mux.HandleFunc("DELETE /v1/domain/{kind}/{id}", server.DeleteDomainEntity)
	server.mux.HandleFunc("GET /v1/domain/{kind}/{id}/revisions/{rev}", server.GetDomainEntityRevision)
	server.mux.HandleFunc("GET /v1/domain/{kind}/{id}/variations", server.GetAllVariations)
	server.mux.HandleFunc("POST /v1/domain/{kind}/{id}/variations", server.AddVariant)
	server.mux.HandleFunc("POST /v1/domain/{kind}/{id}/pid", server.PublishDomainEntity)

	server.mux.HandleFunc("POST /v1/system/{kind}", server.AddSystemEntity)
	server.mux.HandleFunc("GET /v1/system/{kind}", server.GetSystemEntities)
	server.mux.HandleFunc("GET /v1/system/{kind}/{id}", server.GetSystemEntity)
	server.mux.HandleFunc("PUT /v1/system/{kind}/{id}", server.UpdateSystemEntity)
	server.mux.HandleFunc("DELETE /v1/system/{kind}/{id}", server.DeleteSystemEntity)

	server.mux.HandleFunc("POST /v1/relations", server.AddRelation)
	server.mux.HandleFunc("GET /v1/relations", server.GetRelations)
	server.mux.HandleFunc("GET /v1/relations/{id}", server.GetRelation)
	server.mux.HandleFunc("PUT /v1/relations/{id}", server.UpdateRelation)
	server.mux.HandleFunc("GET /v1/relations/{id}/revisions/{rev}", server.GetRelationRevision)
	server.mux.HandleFunc("POST /v1/relations/{id}/pid", server.PublishRelation)

	server.mux.HandleFunc("GET /v1/maintenance/{kind}/unpublished", server.ListUnpublished)
	server.mux.HandleFunc("DELETE /v1/maintenance/{kind}/unpublished/{id}", server.DeleteUnpublished)

	return server
}

func (s *Server) Start() error {
	s.logger.Info("Server started", "port", s.port)

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
