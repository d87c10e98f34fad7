package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/wire"
)

// csvHeaders is the first row of every CSV export.
var csvHeaders = []string{
	"id", "category", "latitude", "longitude", "title", "description",
	"image_uri", "confirmations_count", "reliability_score", "created_at", "expires_at",
}

// ExportMarkers handles GET /markers/export.
// Returns every active marker in one response; ?format=csv selects CSV,
// anything else JSON.
func (s *Server) ExportMarkers(w http.ResponseWriter, r *http.Request) {
	var format *string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeJSON(w, http.StatusBadRequest, badRequestBody("invalid format parameter"))
		return
	}
	if format != nil && *format != "csv" && *format != "json" {
		writeJSON(w, http.StatusBadRequest, badRequestBody("format must be csv or json"))
		return
	}

	markers, err := s.markers.ListActive(r.Context())
	if err != nil {
		s.writeInternal(w, r, err)
		return
	}

	if format != nil && *format == "csv" {
		body := buildCSV(markers)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="markers.csv"`)
		w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = body.WriteTo(w)
		return
	}

	out := make([]wire.Marker, 0, len(markers))
	for _, m := range markers {
		out = append(out, wire.FromDomain(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// buildCSV encodes markers one per line after the header row.
func buildCSV(markers []domain.Marker) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer writes do not fail.
	w.Write(csvHeaders)
	for _, m := range markers {
		//nolint:errcheck
		w.Write(csvRecord(m))
	}
	w.Flush()
	return &buf
}

func csvRecord(m domain.Marker) []string {
	return []string{
		m.ID.String(),
		string(m.Category),
		strconv.FormatFloat(m.Latitude, 'f', -1, 64),
		strconv.FormatFloat(m.Longitude, 'f', -1, 64),
		m.Title,
		m.Description,
		m.ImageURI,
		strconv.Itoa(m.ConfirmationsCount),
		strconv.FormatFloat(m.ReliabilityScore, 'f', -1, 64),
		m.CreatedAt.UTC().Format(time.RFC3339),
		m.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
