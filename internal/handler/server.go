// Package handler implements the HTTP handlers for the marker API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, marker.go) but share the same Server struct so they can
// access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/spec"
)

// MarkerServicer defines the business operations the marker handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type MarkerServicer interface {
	Create(ctx context.Context, d domain.Draft) (domain.Marker, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Marker, error)
	ListActive(ctx context.Context) ([]domain.Marker, error)
	ListActivePaged(ctx context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error)
	Confirm(ctx context.Context, id uuid.UUID) (domain.Marker, error)
}

// Server serves every API endpoint. Wire it in main.go via Routes.
type Server struct {
	markers MarkerServicer
	log     *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// A nil logger falls back to slog.Default.
func NewServer(markers MarkerServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{markers: markers, log: log}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil)
}

// Routes returns a chi router with every endpoint registered.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", serveOpenAPI)

	r.Route("/markers", func(r chi.Router) {
		r.Post("/", s.CreateMarker)
		r.Get("/", s.ListMarkers)
		r.Get("/export", s.ExportMarkers)
		r.Get("/{id}", s.GetMarker)
		r.Post("/{id}/confirmations", s.ConfirmMarker)
	})
	return r
}

// serveOpenAPI handles GET /openapi.yaml.
func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec.OpenAPI)
}
