// Package service contains the business logic for the marker API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/repo"
)

const (
	maxTitleLen       = 120
	maxDescriptionLen = 1000
)

// MarkerService implements business logic for Marker operations.
// It stamps CreatedAt from its own clock and derives ExpiresAt with the same
// Expiry Policy the client uses, so server and client agree on the TTLs.
type MarkerService struct {
	repo repo.MarkerRepo
	now  func() time.Time
}

// NewMarkerService constructs a MarkerService backed by the provided MarkerRepo.
// A nil clock defaults to time.Now.
func NewMarkerService(r repo.MarkerRepo, now func() time.Time) *MarkerService {
	if now == nil {
		now = time.Now
	}
	return &MarkerService{repo: r, now: now}
}

// Create validates and persists a new marker.
// Returns an error wrapping domain.ErrValidation for invalid input.
func (s *MarkerService) Create(ctx context.Context, d domain.Draft) (domain.Marker, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.ImageURI = strings.TrimSpace(d.ImageURI)

	if err := validateDraft(d); err != nil {
		return domain.Marker{}, fmt.Errorf("service.MarkerService.Create: %w", err)
	}

	m := domain.NewMarker(uuid.Nil, d, s.now().UTC())
	result, err := s.repo.Create(ctx, m)
	if err != nil {
		return domain.Marker{}, fmt.Errorf("service.MarkerService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a single marker, active or expired.
func (s *MarkerService) GetByID(ctx context.Context, id uuid.UUID) (domain.Marker, error) {
	result, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Marker{}, fmt.Errorf("service.MarkerService.GetByID: %w", err)
	}
	return result, nil
}

// ListActive returns all markers active now. Always returns a non-nil slice.
func (s *MarkerService) ListActive(ctx context.Context) ([]domain.Marker, error) {
	markers, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("service.MarkerService.ListActive: %w", err)
	}
	if markers == nil {
		return []domain.Marker{}, nil
	}
	return markers, nil
}

// ListActivePaged returns one page of active markers and the total count.
func (s *MarkerService) ListActivePaged(ctx context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error) {
	markers, total, err := s.repo.ListActivePaged(ctx, s.now(), p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.MarkerService.ListActivePaged: %w", err)
	}
	if markers == nil {
		markers = []domain.Marker{}
	}
	return markers, total, nil
}

// Confirm records one corroboration of an active marker.
// Returns domain.ErrNotFound if the marker does not exist or has expired.
func (s *MarkerService) Confirm(ctx context.Context, id uuid.UUID) (domain.Marker, error) {
	result, err := s.repo.Confirm(ctx, id, s.now())
	if err != nil {
		return domain.Marker{}, fmt.Errorf("service.MarkerService.Confirm: %w", err)
	}
	return result, nil
}

// Sweep soft-deletes markers that have expired and returns how many were swept.
func (s *MarkerService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.SoftDeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service.MarkerService.Sweep: %w", err)
	}
	return n, nil
}

// validateDraft enforces the rules for a new marker.
func validateDraft(d domain.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(d.Title) > maxTitleLen {
		return fmt.Errorf("%w: title must be at most %d characters", domain.ErrValidation, maxTitleLen)
	}
	if utf8.RuneCountInString(d.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description must be at most %d characters", domain.ErrValidation, maxDescriptionLen)
	}
	return nil
}
