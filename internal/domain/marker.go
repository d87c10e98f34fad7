// Package domain contains the core data types for the marker service.
// This package depends only on google/uuid and is imported by every other
// internal package (store, markersync, repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Marker is a user-submitted, geolocated, time-limited point of interest.
// ID, Category and CreatedAt never change after creation; ExpiresAt is derived
// from them by the Expiry Policy (see ExpiresAt).
type Marker struct {
	ID                 uuid.UUID `json:"id"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Category           Category  `json:"category"`
	Title              string    `json:"title,omitempty"`
	Description        string    `json:"description,omitempty"`
	ImageURI           string    `json:"image_uri,omitempty"`
	ConfirmationsCount int       `json:"confirmations_count"`
	ReliabilityScore   float64   `json:"reliability_score"` // opaque, in [0,1]
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// Location returns the marker's coordinates.
func (m Marker) Location() Location {
	return Location{Latitude: m.Latitude, Longitude: m.Longitude}
}

// Draft carries the user-supplied fields of a marker that has not been
// created yet. ImageURI is an opaque reference from the image picker.
type Draft struct {
	Location    Location
	Category    Category
	ImageURI    string
	Title       string
	Description string
}

// Validate checks the category and the coordinates of the draft.
// Category is checked first so an unknown category is reported even when the
// coordinates are also out of range.
func (d Draft) Validate() error {
	if !d.Category.Valid() {
		return invalidCategory(string(d.Category))
	}
	return d.Location.Validate()
}

// NewMarker builds a marker from a validated draft. The caller supplies the id
// and creation time; ExpiresAt is computed from the category TTL.
func NewMarker(id uuid.UUID, d Draft, createdAt time.Time) Marker {
	return Marker{
		ID:          id,
		Latitude:    d.Location.Latitude,
		Longitude:   d.Location.Longitude,
		Category:    d.Category,
		Title:       d.Title,
		Description: d.Description,
		ImageURI:    d.ImageURI,
		CreatedAt:   createdAt,
		ExpiresAt:   ExpiresAt(d.Category, createdAt),
	}
}
