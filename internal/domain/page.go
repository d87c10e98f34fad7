package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size bounds for list endpoints.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaginationParams is a 1-indexed page request. When After is set the page
// starts after that position instead (keyset paging) and Page is ignored.
type PaginationParams struct {
	Page  int
	Limit int
	After *Cursor
}

// NewPaginationParams builds a PaginationParams from optional query values.
// Missing or non-positive values take the defaults; Limit is capped at
// MaxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Cursor is a position in the (CreatedAt, ID) ordering of markers.
// Rows removed between two page requests cannot shift a cursor, unlike an
// offset.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

var errBadCursor = errors.New("malformed cursor")

// CursorAfter returns the cursor positioned on m.
func CursorAfter(m Marker) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// String encodes c as an opaque URL-safe token.
func (c Cursor) String() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "_" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a token produced by Cursor.String.
func ParseCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", errBadCursor, err)
	}
	ts, id, ok := strings.Cut(string(raw), "_")
	if !ok {
		return Cursor{}, errBadCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", errBadCursor, err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", errBadCursor, err)
	}
	return Cursor{CreatedAt: createdAt, ID: parsed}, nil
}
