// Package repo contains all database access logic for the marker API.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/markerwatch/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Integration tests pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MarkerRepo defines the persistence operations for Markers.
// The service layer depends on this interface, not the Postgres implementation.
type MarkerRepo interface {
	// Create inserts a marker and returns the persisted record with its
	// DB-generated id. CreatedAt and ExpiresAt are taken from m.
	Create(ctx context.Context, m domain.Marker) (domain.Marker, error)

	// GetByID returns a marker by id, including expired and swept rows.
	// Returns domain.ErrNotFound if no marker with that id exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Marker, error)

	// ListActive returns every marker with expires_at > now that has not been
	// swept, ordered by created_at then id.
	ListActive(ctx context.Context, now time.Time) ([]domain.Marker, error)

	// ListActivePaged returns one page of ListActive and the total count.
	// With p.After set the page starts after that (created_at, id) position
	// and the total counts only the rows from there on.
	ListActivePaged(ctx context.Context, now time.Time, p domain.PaginationParams) ([]domain.Marker, int64, error)

	// Confirm increments confirmations_count of a marker active at now.
	// Returns domain.ErrNotFound if the marker is missing, expired or swept.
	Confirm(ctx context.Context, id uuid.UUID, now time.Time) (domain.Marker, error)

	// SoftDeleteExpired stamps deleted_at on every expired, unswept marker
	// and returns how many rows were affected. Rows are retained for audit.
	SoftDeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// pgMarkerRepo is the Postgres implementation of MarkerRepo.
type pgMarkerRepo struct {
	db db
}

// NewMarkerRepo constructs a MarkerRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewMarkerRepo(db db) MarkerRepo {
	return &pgMarkerRepo{db: db}
}

const markerColumns = `id, latitude, longitude, category, title, description, image_uri,
		confirmations_count, reliability_score, created_at, expires_at`

// Create inserts a new marker row and returns the full persisted record.
func (r *pgMarkerRepo) Create(ctx context.Context, m domain.Marker) (domain.Marker, error) {
	q := `
		INSERT INTO markers (latitude, longitude, category, title, description, image_uri,
		                     reliability_score, created_at, expires_at)
		VALUES (@latitude, @longitude, @category, @title, @description, @image_uri,
		        @reliability_score, @created_at, @expires_at)
		RETURNING ` + markerColumns

	args := pgx.NamedArgs{
		"latitude":          m.Latitude,
		"longitude":         m.Longitude,
		"category":          string(m.Category),
		"title":             m.Title,
		"description":       m.Description,
		"image_uri":         m.ImageURI,
		"reliability_score": m.ReliabilityScore,
		"created_at":        m.CreatedAt,
		"expires_at":        m.ExpiresAt,
	}

	result, err := scanMarker(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Marker{}, fmt.Errorf("repo.MarkerRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a marker by primary key.
func (r *pgMarkerRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Marker, error) {
	q := `SELECT ` + markerColumns + ` FROM markers WHERE id = @id`

	result, err := scanMarker(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Marker{}, fmt.Errorf("repo.MarkerRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListActive returns all active markers, oldest first.
func (r *pgMarkerRepo) ListActive(ctx context.Context, now time.Time) ([]domain.Marker, error) {
	q := `
		SELECT ` + markerColumns + `
		FROM markers
		WHERE expires_at > @now AND deleted_at IS NULL
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"now": now})
	if err != nil {
		return nil, fmt.Errorf("repo.MarkerRepo.ListActive: %w", err)
	}
	defer rows.Close()

	var markers []domain.Marker
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.MarkerRepo.ListActive: scan: %w", err)
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.MarkerRepo.ListActive: rows: %w", err)
	}
	return markers, nil
}

// ListActivePaged returns one page of active markers. The total is computed
// with a window function so page and count come from the same snapshot.
func (r *pgMarkerRepo) ListActivePaged(ctx context.Context, now time.Time, p domain.PaginationParams) ([]domain.Marker, int64, error) {
	args := pgx.NamedArgs{"now": now, "limit": p.Limit}
	where := `expires_at > @now AND deleted_at IS NULL`
	page := `LIMIT @limit OFFSET @offset`
	if p.After != nil {
		where += ` AND (created_at, id) > (@after_created_at, @after_id)`
		args["after_created_at"] = p.After.CreatedAt
		args["after_id"] = p.After.ID
		page = `LIMIT @limit`
	} else {
		args["offset"] = p.Offset()
	}

	q := `
		SELECT ` + markerColumns + `, count(*) OVER () AS total
		FROM markers
		WHERE ` + where + `
		ORDER BY created_at, id
		` + page

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.MarkerRepo.ListActivePaged: %w", err)
	}
	defer rows.Close()

	var (
		markers []domain.Marker
		total   int64
	)
	for rows.Next() {
		m, err := scanMarker(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.MarkerRepo.ListActivePaged: scan: %w", err)
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.MarkerRepo.ListActivePaged: rows: %w", err)
	}

	// An offset page past the end has no rows to carry the window total.
	if len(markers) == 0 && p.After == nil && p.Offset() > 0 {
		const cq = `SELECT count(*) FROM markers WHERE expires_at > @now AND deleted_at IS NULL`
		if err := r.db.QueryRow(ctx, cq, pgx.NamedArgs{"now": now}).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("repo.MarkerRepo.ListActivePaged: count: %w", err)
		}
	}
	return markers, total, nil
}

// Confirm increments the confirmation counter of an active marker.
func (r *pgMarkerRepo) Confirm(ctx context.Context, id uuid.UUID, now time.Time) (domain.Marker, error) {
	q := `
		UPDATE markers
		SET confirmations_count = confirmations_count + 1
		WHERE id = @id AND expires_at > @now AND deleted_at IS NULL
		RETURNING ` + markerColumns

	result, err := scanMarker(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "now": now}))
	if err != nil {
		return domain.Marker{}, fmt.Errorf("repo.MarkerRepo.Confirm: %w", err)
	}
	return result, nil
}

// SoftDeleteExpired marks expired markers as swept.
func (r *pgMarkerRepo) SoftDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `
		UPDATE markers
		SET deleted_at = @now
		WHERE expires_at <= @now AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"now": now})
	if err != nil {
		return 0, fmt.Errorf("repo.MarkerRepo.SoftDeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanMarker maps a single row into a domain.Marker. Extra destinations are
// scanned after the marker columns (used for window totals).
func scanMarker(s scanner, extra ...any) (domain.Marker, error) {
	var (
		m        domain.Marker
		id       pgtype.UUID
		category string
	)

	dest := append([]any{
		&id, &m.Latitude, &m.Longitude, &category, &m.Title, &m.Description, &m.ImageURI,
		&m.ConfirmationsCount, &m.ReliabilityScore, &m.CreatedAt, &m.ExpiresAt,
	}, extra...)

	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Marker{}, domain.ErrNotFound
		}
		return domain.Marker{}, err
	}

	m.ID = uuid.UUID(id.Bytes)
	m.Category = domain.Category(category)
	m.CreatedAt = m.CreatedAt.UTC()
	m.ExpiresAt = m.ExpiresAt.UTC()
	return m, nil
}
