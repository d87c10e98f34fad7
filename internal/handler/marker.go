package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/wire"
)

// CreateMarker handles POST /markers.
func (s *Server) CreateMarker(w http.ResponseWriter, r *http.Request) {
	var body wire.CreateMarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, requestBody("request body too large"))
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("request body must be a JSON object"))
		return
	}

	draft, err := requestToDraft(body)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	created, err := s.markers.Create(r.Context(), draft)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, validationBody(err))
			return
		}
		s.writeInternal(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, wire.FromDomain(created))
}

// ListMarkers handles GET /markers.
// Returns only active markers. Supports ?page= and ?limit= query parameters
// (defaults: page=1, limit=20, max=100), or ?after=<next_cursor> to continue
// from the last row of a previous page.
func (s *Server) ListMarkers(w http.ResponseWriter, r *http.Request) {
	var page, limit *int
	var after *string
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
		writeJSON(w, http.StatusBadRequest, badRequestBody("invalid page parameter"))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, badRequestBody("invalid limit parameter"))
		return
	}

	if err := runtime.BindQueryParameter("form", true, false, "after", r.URL.Query(), &after); err != nil {
		writeJSON(w, http.StatusBadRequest, badRequestBody("invalid after parameter"))
		return
	}

	params := domain.NewPaginationParams(page, limit)
	if after != nil {
		c, err := domain.ParseCursor(*after)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, badRequestBody("invalid after parameter"))
			return
		}
		params.After = &c
	}

	markers, total, err := s.markers.ListActivePaged(r.Context(), params)
	if err != nil {
		s.writeInternal(w, r, err)
		return
	}

	data := make([]wire.Marker, len(markers))
	for i, m := range markers {
		data[i] = wire.FromDomain(m)
	}
	var next *string
	if len(markers) > 0 && len(markers) == params.Limit {
		c := domain.CursorAfter(markers[len(markers)-1]).String()
		next = &c
	}
	writeJSON(w, http.StatusOK, wire.MarkerList{
		Data: data,
		Pagination: wire.Pagination{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      int(total),
			NextCursor: next,
		},
	})
}

// GetMarker handles GET /markers/{id}.
// Expired markers are still returned; clients decide activity from expires_at.
func (s *Server) GetMarker(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}

	m, err := s.markers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, notFoundBody("marker not found"))
			return
		}
		s.writeInternal(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.FromDomain(m))
}

// ConfirmMarker handles POST /markers/{id}/confirmations.
func (s *Server) ConfirmMarker(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}

	m, err := s.markers.Confirm(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, notFoundBody("active marker not found"))
			return
		}
		s.writeInternal(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.FromDomain(m))
}

// --- mapping helpers --------------------------------------------------------

// bindID parses the {id} path parameter, writing a 400 on failure.
func bindID(w http.ResponseWriter, r *http.Request) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequestBody("id must be a UUID"))
		return id, false
	}
	return id, true
}

// requestToDraft converts a CreateMarkerRequest body into a domain.Draft.
// Returns an error if required fields are missing. Range and category checks
// are left to the service.
func requestToDraft(body wire.CreateMarkerRequest) (domain.Draft, error) {
	if body.Latitude == nil || body.Longitude == nil {
		return domain.Draft{}, errors.New("latitude and longitude are required")
	}
	if body.Category == "" {
		return domain.Draft{}, errors.New("category is required")
	}
	d := domain.Draft{
		Location: domain.Location{Latitude: *body.Latitude, Longitude: *body.Longitude},
		Category: domain.Category(body.Category),
	}
	if body.Title != nil {
		d.Title = *body.Title
	}
	if body.Description != nil {
		d.Description = *body.Description
	}
	if body.ImageUri != nil {
		d.ImageURI = *body.ImageUri
	}
	return d, nil
}
