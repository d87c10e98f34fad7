package remote_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/handler"
	"github.com/pkordes/markerwatch/internal/markersync"
	"github.com/pkordes/markerwatch/internal/remote"
)

// compile-time check: the HTTP client is a sync source.
var _ markersync.Source = (*remote.Client)(nil)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeMarkers is an in-memory handler.MarkerServicer so the client can be
// exercised against the real router and wire types.
type fakeMarkers struct {
	mu      sync.Mutex
	markers []domain.Marker
	// onPage, when set, runs under the lock after each page is served.
	onPage func(f *fakeMarkers)
}

func (f *fakeMarkers) Create(_ context.Context, d domain.Draft) (domain.Marker, error) {
	if err := d.Validate(); err != nil {
		return domain.Marker{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	created := t0.Add(time.Duration(len(f.markers)) * time.Millisecond)
	m := domain.NewMarker(uuid.New(), d, created)
	f.markers = append(f.markers, m)
	return m, nil
}

func (f *fakeMarkers) GetByID(_ context.Context, id uuid.UUID) (domain.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.markers {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Marker{}, domain.ErrNotFound
}

func (f *fakeMarkers) ListActive(_ context.Context) ([]domain.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Marker{}, f.markers...), nil
}

func (f *fakeMarkers) ListActivePaged(_ context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onPage != nil {
		defer f.onPage(f)
	}
	rest, total := f.markers, len(f.markers)
	if p.After != nil {
		rest = nil
		for _, m := range f.markers {
			if m.CreatedAt.After(p.After.CreatedAt) ||
				(m.CreatedAt.Equal(p.After.CreatedAt) && bytes.Compare(m.ID[:], p.After.ID[:]) > 0) {
				rest = append(rest, m)
			}
		}
		total = len(rest)
	} else {
		rest = rest[min(p.Offset(), len(rest)):]
	}
	page := append([]domain.Marker{}, rest[:min(p.Limit, len(rest))]...)
	return page, int64(total), nil
}

func (f *fakeMarkers) Confirm(ctx context.Context, id uuid.UUID) (domain.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.markers {
		if f.markers[i].ID == id {
			f.markers[i].ConfirmationsCount++
			return f.markers[i], nil
		}
	}
	return domain.Marker{}, domain.ErrNotFound
}

func newAPI(t *testing.T, f *fakeMarkers) *remote.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(handler.NewServer(f, logger).Routes())
	t.Cleanup(srv.Close)

	c, err := remote.NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func newClientFor(t *testing.T, h http.HandlerFunc, opts ...remote.Option) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := remote.NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func draft(c domain.Category) domain.Draft {
	return domain.Draft{
		Location:    domain.Location{Latitude: 33.749, Longitude: -84.388},
		Category:    c,
		Title:       "Checkpoint",
		Description: "two vehicles",
		ImageURI:    "file:///photo.jpg",
	}
}

func TestClient_SubmitMarker(t *testing.T) {
	c := newAPI(t, &fakeMarkers{})

	m, err := c.SubmitMarker(context.Background(), draft(domain.CategoryObserver))

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, domain.CategoryObserver, m.Category)
	assert.Equal(t, "two vehicles", m.Description)
	assert.Equal(t, "file:///photo.jpg", m.ImageURI)
	assert.True(t, m.ExpiresAt.Equal(t0.Add(time.Hour)))
}

func TestClient_SubmitMarker_Validation(t *testing.T) {
	c := newAPI(t, &fakeMarkers{})

	d := draft(domain.CategoryICE)
	d.Location.Latitude = 95
	_, err := c.SubmitMarker(context.Background(), d)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrSyncFailed)
	assert.Contains(t, err.Error(), "latitude")
}

// TestClient_FetchActiveMarkers_Pages verifies that every page is fetched and
// the results are returned in server order.
func TestClient_FetchActiveMarkers_Pages(t *testing.T) {
	f := &fakeMarkers{}
	for i := 0; i < 250; i++ {
		_, err := f.Create(context.Background(), draft(domain.CategoryICE))
		require.NoError(t, err)
	}
	c := newAPI(t, f)

	got, err := c.FetchActiveMarkers(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 250)
	assert.Equal(t, f.markers[0].ID, got[0].ID)
	assert.Equal(t, f.markers[249].ID, got[249].ID)
}

// TestClient_FetchActiveMarkers_ExpiryBetweenPages removes the head of the
// list after the first page is served. Continuing from the last marker seen
// rather than from a row offset means nothing later is skipped.
func TestClient_FetchActiveMarkers_ExpiryBetweenPages(t *testing.T) {
	f := &fakeMarkers{}
	for i := 0; i < 250; i++ {
		_, err := f.Create(context.Background(), draft(domain.CategoryICE))
		require.NoError(t, err)
	}
	want := append([]domain.Marker{}, f.markers...)
	expired := false
	f.onPage = func(f *fakeMarkers) {
		if !expired {
			expired = true
			f.markers = f.markers[10:]
		}
	}
	c := newAPI(t, f)

	got, err := c.FetchActiveMarkers(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 250)
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
	}
}

func TestClient_FetchActiveMarkers_Empty(t *testing.T) {
	c := newAPI(t, &fakeMarkers{})

	got, err := c.FetchActiveMarkers(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClient_Confirm(t *testing.T) {
	f := &fakeMarkers{}
	c := newAPI(t, f)
	m, err := c.SubmitMarker(context.Background(), draft(domain.CategoryICE))
	require.NoError(t, err)

	got, err := c.Confirm(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ConfirmationsCount)

	_, err = c.Confirm(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_ServerError(t *testing.T) {
	c := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"internal_error","message":"boom"}}`, http.StatusInternalServerError)
	})

	_, err := c.FetchActiveMarkers(context.Background())

	var sf *domain.SyncFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, domain.SyncServer, sf.Kind)
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_MalformedBodyIsServerFailure(t *testing.T) {
	c := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := c.FetchActiveMarkers(context.Background())

	var sf *domain.SyncFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, domain.SyncServer, sf.Kind)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, remote.WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	defer close(release)

	_, err := c.FetchActiveMarkers(context.Background())

	var sf *domain.SyncFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, domain.SyncTimeout, sf.Kind)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := remote.NewClient(url)
	require.NoError(t, err)

	_, err = c.FetchActiveMarkers(context.Background())

	var sf *domain.SyncFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, domain.SyncNetwork, sf.Kind)
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	_, err := remote.NewClient("ftp://example.com")

	assert.Error(t, err)
}
