// Package wire holds the JSON request and response bodies of the marker API.
// The HTTP handlers and the remote client both use these types so the two
// sides of the API cannot drift apart.
package wire

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/markerwatch/internal/domain"
)

// Marker is the API representation of a domain.Marker.
type Marker struct {
	Id                 openapi_types.UUID `json:"id"`
	Latitude           float64            `json:"latitude"`
	Longitude          float64            `json:"longitude"`
	Category           string             `json:"category"`
	Title              *string            `json:"title,omitempty"`
	Description        *string            `json:"description,omitempty"`
	ImageUri           *string            `json:"image_uri,omitempty"`
	ConfirmationsCount int                `json:"confirmations_count"`
	ReliabilityScore   float64            `json:"reliability_score"`
	CreatedAt          time.Time          `json:"created_at"`
	ExpiresAt          time.Time          `json:"expires_at"`
}

// CreateMarkerRequest is the body of POST /markers.
// Coordinates are pointers so a missing field is distinguishable from 0.
type CreateMarkerRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Category    string   `json:"category"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageUri    *string  `json:"image_uri,omitempty"`
}

// Pagination describes the page returned by a list endpoint.
// NextCursor is set when the page is full; pass it back as ?after= to
// continue from the last row.
type Pagination struct {
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int     `json:"total"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

// MarkerList is the body of GET /markers.
type MarkerList struct {
	Data       []Marker   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// FromDomain converts a domain.Marker into its API representation.
func FromDomain(m domain.Marker) Marker {
	return Marker{
		Id:                 m.ID,
		Latitude:           m.Latitude,
		Longitude:          m.Longitude,
		Category:           string(m.Category),
		Title:              optional(m.Title),
		Description:        optional(m.Description),
		ImageUri:           optional(m.ImageURI),
		ConfirmationsCount: m.ConfirmationsCount,
		ReliabilityScore:   m.ReliabilityScore,
		CreatedAt:          m.CreatedAt,
		ExpiresAt:          m.ExpiresAt,
	}
}

// ToDomain converts an API marker back into a domain.Marker.
// ExpiresAt is recomputed from the category and creation time.
func (m Marker) ToDomain() domain.Marker {
	c := domain.Category(m.Category)
	return domain.Marker{
		ID:                 m.Id,
		Latitude:           m.Latitude,
		Longitude:          m.Longitude,
		Category:           c,
		Title:              deref(m.Title),
		Description:        deref(m.Description),
		ImageURI:           deref(m.ImageUri),
		ConfirmationsCount: m.ConfirmationsCount,
		ReliabilityScore:   m.ReliabilityScore,
		CreatedAt:          m.CreatedAt,
		ExpiresAt:          domain.ExpiresAt(c, m.CreatedAt),
	}
}

// NewCreateMarkerRequest builds the request body for a draft.
func NewCreateMarkerRequest(d domain.Draft) CreateMarkerRequest {
	lat, lon := d.Location.Latitude, d.Location.Longitude
	return CreateMarkerRequest{
		Latitude:    &lat,
		Longitude:   &lon,
		Category:    string(d.Category),
		Title:       optional(d.Title),
		Description: optional(d.Description),
		ImageUri:    optional(d.ImageURI),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
