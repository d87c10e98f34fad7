// Package snapshot keeps the client's last-known-good marker set in a local
// SQLite file so a restarted client can answer before its first refresh.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pkordes/markerwatch/internal/domain"
)

// Store wraps the SQLite handle holding the snapshot.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed and opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot.Open: create directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot.Open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema creates the snapshot table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS markers (
			id TEXT PRIMARY KEY,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			category TEXT NOT NULL,
			created_at TEXT NOT NULL,
			image_uri TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			confirmations_count INTEGER NOT NULL DEFAULT 0,
			reliability_score REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("snapshot.InitSchema: %w", err)
		}
	}
	return nil
}

// Save replaces the stored set with ms in a single transaction.
func (s *Store) Save(ctx context.Context, ms []domain.Marker) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot.Save: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM markers`); err != nil {
		return fmt.Errorf("snapshot.Save: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markers
			(id, latitude, longitude, category, created_at, image_uri, title, description,
			 confirmations_count, reliability_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("snapshot.Save: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx,
			m.ID.String(),
			m.Latitude,
			m.Longitude,
			string(m.Category),
			m.CreatedAt.UTC().Format(time.RFC3339Nano),
			m.ImageURI,
			m.Title,
			m.Description,
			m.ConfirmationsCount,
			m.ReliabilityScore,
		); err != nil {
			return fmt.Errorf("snapshot.Save: insert %s: %w", m.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (key, value) VALUES ('saved_at', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("snapshot.Save: meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot.Save: commit: %w", err)
	}
	return nil
}

// Load returns the stored markers in insertion order. ExpiresAt is derived
// from the category rather than stored, so the expiry rule always applies on
// read. Rows that no longer parse are skipped.
func (s *Store) Load(ctx context.Context) ([]domain.Marker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, category, created_at, image_uri, title, description,
		       confirmations_count, reliability_score
		FROM markers
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("snapshot.Load: %w", err)
	}
	defer rows.Close()

	out := []domain.Marker{}
	for rows.Next() {
		var (
			m         domain.Marker
			id        string
			category  string
			createdAt string
		)
		if err := rows.Scan(
			&id, &m.Latitude, &m.Longitude, &category, &createdAt,
			&m.ImageURI, &m.Title, &m.Description,
			&m.ConfirmationsCount, &m.ReliabilityScore,
		); err != nil {
			return nil, fmt.Errorf("snapshot.Load: scan: %w", err)
		}

		parsedID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		c, err := domain.ParseCategory(category)
		if err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			continue
		}

		m.ID = parsedID
		m.Category = c
		m.CreatedAt = ts
		m.ExpiresAt = domain.ExpiresAt(c, ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot.Load: rows: %w", err)
	}
	return out, nil
}

// SavedAt reports when Save last committed. ok is false before the first save.
func (s *Store) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var v string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = 'saved_at'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("snapshot.SavedAt: %w", err)
	}
	t, err = time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("snapshot.SavedAt: %w", err)
	}
	return t, true, nil
}
