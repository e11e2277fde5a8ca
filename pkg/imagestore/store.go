// Package imagestore archives downloaded radio images in a sqlite database.
package imagestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound is returned for image IDs that are not in the store.
var ErrNotFound = errors.New("imagestore: image not found")

// Entry describes one archived image. Data is only filled by Get.
type Entry struct {
	ID        int64
	Model     string
	Note      string
	Size      int
	SHA256    string
	CreatedAt time.Time
	Data      []byte
}

// Store is a sqlite-backed image archive.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL,
	sha256 TEXT NOT NULL,
	data BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_images_model ON images(model);
CREATE INDEX IF NOT EXISTS idx_images_created_at ON images(created_at DESC);
`

// Open opens or creates the database at path, creating parent directories.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = "radiomem.db"
	}
	s := &Store{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("imagestore: create directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=10000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("imagestore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("imagestore: create tables: %w", err)
	}
	s.db = db
	s.logger.Debug("image store opened", zap.String("path", path))
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives a copy of data and returns its ID.
func (s *Store) Save(ctx context.Context, model string, data []byte, note string) (int64, error) {
	if model == "" {
		return 0, fmt.Errorf("imagestore: model is required")
	}
	sum := sha256.Sum256(data)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO images (model, note, size, sha256, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		model, note, len(data), hex.EncodeToString(sum[:]), data, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("imagestore: insert image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("imagestore: insert image: %w", err)
	}
	s.logger.Info("image archived", zap.Int64("id", id), zap.String("model", model), zap.Int("bytes", len(data)))
	return id, nil
}

// Get returns the entry and image bytes for id.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model, note, size, sha256, created_at, data FROM images WHERE id = ?`, id)
	e := &Entry{}
	err := row.Scan(&e.ID, &e.Model, &e.Note, &e.Size, &e.SHA256, &e.CreatedAt, &e.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("imagestore: get %d: %w", id, err)
	}
	return e, nil
}

// List returns all entries, newest first, without image bytes. A non-empty
// model restricts the result to that model.
func (s *Store) List(ctx context.Context, model string) ([]Entry, error) {
	query := `SELECT id, model, note, size, sha256, created_at FROM images`
	var args []any
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("imagestore: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Model, &e.Note, &e.Size, &e.SHA256, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("imagestore: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the image with the given ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("imagestore: delete %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("imagestore: delete %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
