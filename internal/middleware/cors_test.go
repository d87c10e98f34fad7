package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/markerwatch/internal/middleware"
)

const appOrigin = "http://localhost:8081"

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORSHandler(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		origin        string
		requestMethod string // Access-Control-Request-Method, preflight only
		wantOrigin    string
		wantMethods   bool
	}{
		{name: "simple GET from app", method: http.MethodGet, origin: appOrigin, wantOrigin: appOrigin},
		{name: "GET from unknown origin", method: http.MethodGet, origin: "http://evil.example.com"},
		{name: "preflight POST", method: http.MethodOptions, origin: appOrigin, requestMethod: http.MethodPost, wantOrigin: appOrigin, wantMethods: true},
		{name: "preflight DELETE refused", method: http.MethodOptions, origin: appOrigin, requestMethod: http.MethodDelete},
		{name: "preflight PUT refused", method: http.MethodOptions, origin: appOrigin, requestMethod: http.MethodPut},
	}

	h := middleware.NewCORSHandler([]string{appOrigin})(okHandler)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/markers", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.requestMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
				// Browsers send request headers lowercased; rs/cors compares verbatim.
				req.Header.Set("Access-Control-Request-Headers", "content-type")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantMethods {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
				assert.Less(t, rec.Code, 300)
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}
