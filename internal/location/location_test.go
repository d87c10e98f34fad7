package location_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/location"
)

func TestStatic_Current(t *testing.T) {
	p := location.Static{Latitude: 52.52, Longitude: 13.405}

	got, err := p.Current(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.Location{Latitude: 52.52, Longitude: 13.405}, got)
}

func TestStatic_Current_InvalidIsUnavailable(t *testing.T) {
	p := location.Static{Latitude: 100}

	_, err := p.Current(context.Background())

	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
	assert.NotErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestStatic_Current_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := location.Static{}.Current(ctx)

	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
}

func TestDenied_Current(t *testing.T) {
	_, err := location.Denied{}.Current(context.Background())

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}
