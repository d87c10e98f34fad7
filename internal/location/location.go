// Package location defines the location collaborator the marker client
// consumes. Real providers (GPS, browser geolocation) live outside this
// module; the implementations here cover the CLI and tests.
package location

import (
	"context"
	"fmt"

	"github.com/pkordes/markerwatch/internal/domain"
)

// Provider supplies the device's current coordinates.
// Failures must wrap domain.ErrPermissionDenied or
// domain.ErrLocationUnavailable so callers can tell them apart.
type Provider interface {
	Current(ctx context.Context) (domain.Location, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (domain.Location, error)

// Current calls f.
func (f ProviderFunc) Current(ctx context.Context) (domain.Location, error) {
	return f(ctx)
}

// Static always reports the same coordinates.
type Static domain.Location

// Current returns the fixed location, or ErrLocationUnavailable when the
// stored coordinates are invalid or ctx is already done.
func (s Static) Current(ctx context.Context) (domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return domain.Location{}, fmt.Errorf("%w: %v", domain.ErrLocationUnavailable, err)
	}
	loc := domain.Location(s)
	if err := loc.Validate(); err != nil {
		return domain.Location{}, fmt.Errorf("%w: %v", domain.ErrLocationUnavailable, err)
	}
	return loc, nil
}

// Denied is a Provider for which the user refused location access.
type Denied struct{}

// Current always returns domain.ErrPermissionDenied.
func (Denied) Current(context.Context) (domain.Location, error) {
	return domain.Location{}, domain.ErrPermissionDenied
}
