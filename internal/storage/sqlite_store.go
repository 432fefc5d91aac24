package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"go-element-manager/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements ChunkStore on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLiteStore opens (creating if needed) the database at path and applies
// the embedded migrations.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Debug("Opened sqlite chunk store", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// m.Close would also close db, so only the source is released here.
	defer src.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveChunk inserts or replaces a chunk row.
func (s *SQLiteStore) SaveChunk(ctx context.Context, chunk *model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(chunk.ID) == "" {
		return fmt.Errorf("chunk ID cannot be empty")
	}
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk %s: %w", chunk.ID, err)
	}

	props := chunk.Properties
	if props == nil {
		props = []model.Property{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal properties of chunk %s: %w", chunk.ID, err)
	}
	extra := chunk.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("marshal extra fields of chunk %s: %w", chunk.ID, err)
	}

	createdAt, updatedAt := chunk.CreatedAt, chunk.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunks (
		   id, name, description, category, snippet, locked, static, static_file,
		   properties, extra, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   category = excluded.category,
		   snippet = excluded.snippet,
		   locked = excluded.locked,
		   static = excluded.static,
		   static_file = excluded.static_file,
		   properties = excluded.properties,
		   extra = excluded.extra,
		   updated_at = excluded.updated_at`,
		chunk.ID,
		chunk.Name,
		chunk.Description,
		chunk.Category,
		chunk.Snippet,
		chunk.Locked,
		chunk.Static,
		chunk.StaticFile,
		string(propsJSON),
		string(extraJSON),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("save chunk %s: %w", chunk.ID, err)
	}
	s.logger.Debug("Saved chunk", "id", chunk.ID)
	return nil
}

const selectChunk = `SELECT id, name, description, category, snippet, locked, static, static_file,
	properties, extra, created_at, updated_at FROM chunks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*model.Chunk, error) {
	var (
		c                    model.Chunk
		propsJSON, extraJSON string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Category, &c.Snippet,
		&c.Locked, &c.Static, &c.StaticFile,
		&propsJSON, &extraJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(propsJSON), &c.Properties); err != nil {
		return nil, fmt.Errorf("decode properties of chunk %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(extraJSON), &c.Extra); err != nil {
		return nil, fmt.Errorf("decode extra fields of chunk %s: %w", c.ID, err)
	}
	if len(c.Extra) == 0 {
		c.Extra = nil
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// LoadChunk retrieves a chunk row by ID.
func (s *SQLiteStore) LoadChunk(ctx context.Context, chunkID string) (*model.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk, err := scanChunk(s.db.QueryRowContext(ctx, selectChunk+` WHERE id = ?`, chunkID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
		}
		return nil, fmt.Errorf("load chunk %s: %w", chunkID, err)
	}
	return chunk, nil
}

// GetAllChunkIDs returns every chunk ID in ascending order.
func (s *SQLiteStore) GetAllChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list chunk ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk ids: %w", err)
	}
	return ids, nil
}

// DeleteChunk removes a chunk row.
func (s *SQLiteStore) DeleteChunk(ctx context.Context, chunkID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, chunkID); err != nil {
		return fmt.Errorf("delete chunk %s: %w", chunkID, err)
	}
	return nil
}

// ReadAll returns every chunk ordered by ID.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]*model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, selectChunk+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}
