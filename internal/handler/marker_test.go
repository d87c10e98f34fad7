package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/handler"
	"github.com/pkordes/markerwatch/internal/wire"
)

// mockMarkerServicer is a test double for handler.MarkerServicer.
// Set only the method fields your test needs.
type mockMarkerServicer struct {
	create          func(ctx context.Context, d domain.Draft) (domain.Marker, error)
	getByID         func(ctx context.Context, id uuid.UUID) (domain.Marker, error)
	listActive      func(ctx context.Context) ([]domain.Marker, error)
	listActivePaged func(ctx context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error)
	confirm         func(ctx context.Context, id uuid.UUID) (domain.Marker, error)
}

func (m *mockMarkerServicer) Create(ctx context.Context, d domain.Draft) (domain.Marker, error) {
	return m.create(ctx, d)
}
func (m *mockMarkerServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Marker, error) {
	return m.getByID(ctx, id)
}
func (m *mockMarkerServicer) ListActive(ctx context.Context) ([]domain.Marker, error) {
	return m.listActive(ctx)
}
func (m *mockMarkerServicer) ListActivePaged(ctx context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error) {
	return m.listActivePaged(ctx, p)
}
func (m *mockMarkerServicer) Confirm(ctx context.Context, id uuid.UUID) (domain.Marker, error) {
	return m.confirm(ctx, id)
}

// compile-time check: mockMarkerServicer must satisfy handler.MarkerServicer.
var _ handler.MarkerServicer = (*mockMarkerServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mock into the chi router,
// mirroring how main.go wires it in production.
func newHTTPHandler(svc handler.MarkerServicer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handler.NewServer(svc, logger).Routes()
}

func markerFixture() domain.Marker {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := domain.NewMarker(uuid.New(), domain.Draft{
		Location: domain.Location{Latitude: 29.7604, Longitude: -95.3698},
		Category: domain.CategoryICE,
		Title:    "Checkpoint",
	}, created)
	m.ConfirmationsCount = 3
	m.ReliabilityScore = 0.75
	return m
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) wire.ErrorResponse {
	t.Helper()
	var resp wire.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ---- POST /markers ---------------------------------------------------------

func TestCreateMarker_201(t *testing.T) {
	fixture := markerFixture()
	var got domain.Draft
	svc := &mockMarkerServicer{
		create: func(_ context.Context, d domain.Draft) (domain.Marker, error) {
			got = d
			return fixture, nil
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodPost, "/markers", jsonBody(t, map[string]any{
		"latitude":  29.7604,
		"longitude": -95.3698,
		"category":  "ice",
		"image_uri": "file:///photo.jpg",
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.CategoryICE, got.Category)
	assert.Equal(t, 29.7604, got.Location.Latitude)
	assert.Equal(t, "file:///photo.jpg", got.ImageURI)

	var resp wire.Marker
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.ID, resp.Id)
	assert.Equal(t, "ice", resp.Category)
	assert.Equal(t, 3, resp.ConfirmationsCount)
	assert.True(t, resp.ExpiresAt.Equal(fixture.ExpiresAt))
}

func TestCreateMarker_422_InvalidLocation(t *testing.T) {
	svc := &mockMarkerServicer{
		create: func(_ context.Context, _ domain.Draft) (domain.Marker, error) {
			return domain.Marker{}, fmt.Errorf("service.MarkerService.Create: %w",
				domain.Location{Latitude: 95}.Validate())
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodPost, "/markers", jsonBody(t, map[string]any{
		"latitude": 95, "longitude": 0, "category": "ice",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.True(t, strings.HasPrefix(resp.Error.Message, "invalid location"), resp.Error.Message)
}

func TestCreateMarker_422_MissingCoordinates(t *testing.T) {
	svc := &mockMarkerServicer{} // service must not be reached

	rec := do(newHTTPHandler(svc), http.MethodPost, "/markers", jsonBody(t, map[string]any{
		"category": "observer",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Message, "latitude")
}

func TestCreateMarker_422_MalformedBody(t *testing.T) {
	rec := do(newHTTPHandler(&mockMarkerServicer{}), http.MethodPost, "/markers", strings.NewReader("{not json"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateMarker_500_DoesNotLeakError(t *testing.T) {
	svc := &mockMarkerServicer{
		create: func(context.Context, domain.Draft) (domain.Marker, error) {
			return domain.Marker{}, errors.New("pq: password authentication failed")
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodPost, "/markers", jsonBody(t, map[string]any{
		"latitude": 1, "longitude": 1, "category": "ice",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

// ---- GET /markers ----------------------------------------------------------

func TestListMarkers_200(t *testing.T) {
	markers := []domain.Marker{markerFixture(), markerFixture()}
	var gotParams domain.PaginationParams
	svc := &mockMarkerServicer{
		listActivePaged: func(_ context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error) {
			gotParams = p
			return markers, 12, nil
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodGet, "/markers?page=2&limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaginationParams{Page: 2, Limit: 5}, gotParams)

	var resp wire.MarkerList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, wire.Pagination{Page: 2, Limit: 5, Total: 12}, resp.Pagination)
}

func TestListMarkers_DefaultsAndEmpty(t *testing.T) {
	svc := &mockMarkerServicer{
		listActivePaged: func(_ context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error) {
			assert.Equal(t, domain.PaginationParams{Page: 1, Limit: 20}, p)
			return []domain.Marker{}, 0, nil
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodGet, "/markers", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestListMarkers_400_BadPage(t *testing.T) {
	rec := do(newHTTPHandler(&mockMarkerServicer{}), http.MethodGet, "/markers?page=abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Error.Code)
}

func TestListMarkers_AfterCursor(t *testing.T) {
	prev, last := markerFixture(), markerFixture()
	var gotParams domain.PaginationParams
	svc := &mockMarkerServicer{
		listActivePaged: func(_ context.Context, p domain.PaginationParams) ([]domain.Marker, int64, error) {
			gotParams = p
			return []domain.Marker{markerFixture(), last}, 7, nil
		},
	}
	after := domain.CursorAfter(prev).String()

	rec := do(newHTTPHandler(svc), http.MethodGet, "/markers?limit=2&after="+after, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotParams.After)
	assert.Equal(t, prev.ID, gotParams.After.ID)
	assert.True(t, gotParams.After.CreatedAt.Equal(prev.CreatedAt))

	var resp wire.MarkerList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Pagination.NextCursor, "a full page carries a cursor")
	next, err := domain.ParseCursor(*resp.Pagination.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, last.ID, next.ID)
}

func TestListMarkers_400_BadCursor(t *testing.T) {
	rec := do(newHTTPHandler(&mockMarkerServicer{}), http.MethodGet, "/markers?after=not-a-cursor", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Error.Code)
}

// ---- GET /markers/{id} -----------------------------------------------------

func TestGetMarker_200(t *testing.T) {
	fixture := markerFixture()
	svc := &mockMarkerServicer{
		getByID: func(_ context.Context, id uuid.UUID) (domain.Marker, error) {
			assert.Equal(t, fixture.ID, id)
			return fixture, nil
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodGet, "/markers/"+fixture.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp wire.Marker
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture, resp.ToDomain())
}

func TestGetMarker_404(t *testing.T) {
	svc := &mockMarkerServicer{
		getByID: func(context.Context, uuid.UUID) (domain.Marker, error) {
			return domain.Marker{}, fmt.Errorf("service.MarkerService.GetByID: %w", domain.ErrNotFound)
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodGet, "/markers/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)
}

func TestGetMarker_400_InvalidID(t *testing.T) {
	rec := do(newHTTPHandler(&mockMarkerServicer{}), http.MethodGet, "/markers/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- POST /markers/{id}/confirmations -------------------------------------

func TestConfirmMarker_200(t *testing.T) {
	fixture := markerFixture()
	svc := &mockMarkerServicer{
		confirm: func(_ context.Context, id uuid.UUID) (domain.Marker, error) {
			m := fixture
			m.ConfirmationsCount++
			return m, nil
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodPost, "/markers/"+fixture.ID.String()+"/confirmations", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp wire.Marker
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp.ConfirmationsCount)
}

func TestConfirmMarker_404(t *testing.T) {
	svc := &mockMarkerServicer{
		confirm: func(context.Context, uuid.UUID) (domain.Marker, error) {
			return domain.Marker{}, domain.ErrNotFound
		},
	}

	rec := do(newHTTPHandler(svc), http.MethodPost, "/markers/"+uuid.NewString()+"/confirmations", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
