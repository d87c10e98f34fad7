package markersync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/store"
)

// TestApply_StaleGenerationDropped verifies that a fetch result older than
// the last applied one is ignored.
func TestApply_StaleGenerationDropped(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := store.New()
	s := New(st, nil, WithClock(func() time.Time { return t0 }))
	defer s.Close()

	mk := func(title string) domain.Marker {
		m := domain.NewMarker(uuid.New(), domain.Draft{Category: domain.CategoryICE}, t0)
		m.Title = title
		return m
	}
	newer, older := mk("newer"), mk("older")

	s.apply(fetchResult{gen: 2, markers: []domain.Marker{newer}})
	s.apply(fetchResult{gen: 1, markers: []domain.Marker{older}})

	active := st.ListActive(t0)
	require.Len(t, active, 1)
	assert.Equal(t, "newer", active[0].Title)

	_, err := st.Get(older.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
