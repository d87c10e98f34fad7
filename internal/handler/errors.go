package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkordes/markerwatch/internal/wire"
)

// notFoundBody returns an ErrorResponse for a missing resource.
// The caller supplies the human-readable message (e.g. "marker not found")
// because the handler is the layer that knows what was being looked up.
func notFoundBody(message string) wire.ErrorResponse {
	return wire.ErrorResponse{Error: wire.ErrorDetail{Code: "not_found", Message: message}}
}

// validationBody returns an ErrorResponse for a domain validation failure.
// The message is extracted from the wrapped domain.ErrValidation error.
func validationBody(err error) wire.ErrorResponse {
	return wire.ErrorResponse{Error: wire.ErrorDetail{Code: "validation_error", Message: unwrapMessage(err)}}
}

// requestBody returns an ErrorResponse for a request rejected before
// reaching the service layer (e.g. missing or malformed body).
func requestBody(message string) wire.ErrorResponse {
	return wire.ErrorResponse{Error: wire.ErrorDetail{Code: "validation_error", Message: message}}
}

// badRequestBody returns an ErrorResponse for an unparseable path or query parameter.
func badRequestBody(message string) wire.ErrorResponse {
	return wire.ErrorResponse{Error: wire.ErrorDetail{Code: "bad_request", Message: message}}
}

// internalBody never leaks the underlying error to the client.
func internalBody() wire.ErrorResponse {
	return wire.ErrorResponse{Error: wire.ErrorDetail{Code: "internal_error", Message: "internal server error"}}
}

// unwrapMessage extracts the human-readable part from a wrapped validation error.
// e.g. "service.MarkerService.Create: validation error: invalid category: ..." → "invalid category: ..."
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const marker = "validation error: "
	if i := strings.LastIndex(msg, marker); i >= 0 && i+len(marker) < len(msg) {
		return msg[i+len(marker):]
	}
	return msg
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeInternal logs err and writes a generic 500 response.
func (s *Server) writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	s.log.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, internalBody())
}
