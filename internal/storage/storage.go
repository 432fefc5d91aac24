package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go-element-manager/internal/model"
)

// ErrNotFound is returned (wrapped) when no chunk exists for an ID.
var ErrNotFound = errors.New("chunk not found")

// ChunkStore defines the operations needed for persisting chunks.
// Implementations must be safe for concurrent use.
type ChunkStore interface {
	// SaveChunk inserts or replaces the chunk with chunk.ID.
	SaveChunk(ctx context.Context, chunk *model.Chunk) error

	// LoadChunk retrieves a chunk by its ID. A missing chunk yields an error
	// wrapping ErrNotFound.
	LoadChunk(ctx context.Context, chunkID string) (*model.Chunk, error)

	// GetAllChunkIDs returns all known chunk IDs in ascending order.
	GetAllChunkIDs(ctx context.Context) ([]string, error)

	// DeleteChunk removes a chunk. Deleting a missing chunk is not an error.
	DeleteChunk(ctx context.Context, chunkID string) error

	// ReadAll retrieves every chunk, ordered by ID.
	ReadAll(ctx context.Context) ([]*model.Chunk, error)

	Close() error
}

// Open returns the store for driver ("json" or "sqlite") at path.
func Open(driver, path string, logger *slog.Logger) (ChunkStore, error) {
	switch driver {
	case "json", "":
		s, err := NewJSONStore(path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := OpenSQLiteStore(path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
