package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go-element-manager/internal/model"
	"go-element-manager/pkg/fsutils"
)

// JSONStore implements ChunkStore using one JSON file per chunk.
type JSONStore struct {
	// BasePath is the directory where chunk files (*.json) are stored.
	BasePath string

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewJSONStore creates a new JSONStore instance.
// It ensures the base storage directory exists.
func NewJSONStore(basePath string, logger *slog.Logger) (*JSONStore, error) {
	if err := fsutils.CreateDir(basePath); err != nil {
		return nil, fmt.Errorf("failed to create storage directory '%s': %w", basePath, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &JSONStore{BasePath: basePath, logger: logger}, nil
}

// chunkPath maps an ID to its file inside BasePath.
func (js *JSONStore) chunkPath(chunkID string) (string, error) {
	if chunkID == "" {
		return "", fmt.Errorf("chunk ID cannot be empty")
	}
	if !fsutils.IsSafeFilename(chunkID) {
		return "", fmt.Errorf("chunk ID %q is not a valid file name", chunkID)
	}
	return filepath.Join(js.BasePath, chunkID+".json"), nil
}

// SaveChunk persists the chunk to its JSON file.
func (js *JSONStore) SaveChunk(ctx context.Context, chunk *model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := js.chunkPath(chunk.ID)
	if err != nil {
		return err
	}
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk %s: %w", chunk.ID, err)
	}

	data, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chunk %s: %w", chunk.ID, err)
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	if err := fsutils.WriteFileAtomic(filePath, data); err != nil {
		return fmt.Errorf("failed to write chunk file %s: %w", filePath, err)
	}
	js.logger.Debug("Saved chunk", "id", chunk.ID, "path", filePath)
	return nil
}

// LoadChunk retrieves a chunk from its JSON file.
func (js *JSONStore) LoadChunk(ctx context.Context, chunkID string) (*model.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filePath, err := js.chunkPath(chunkID)
	if err != nil {
		// An ID that cannot name a file cannot name a stored chunk either.
		return nil, fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
	}

	js.mu.RLock()
	data, err := os.ReadFile(filePath)
	js.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read chunk file %s: %w", filePath, err)
	}

	var chunk model.Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunk data from %s: %w", filePath, err)
	}
	js.logger.Debug("Loaded chunk", "id", chunkID, "path", filePath)
	return &chunk, nil
}

// GetAllChunkIDs scans the BasePath directory for *.json files and extracts IDs.
func (js *JSONStore) GetAllChunkIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	js.mu.RLock()
	files, err := os.ReadDir(js.BasePath)
	js.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read storage directory %s: %w", js.BasePath, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if !fsutils.IsSafeFilename(id) {
			js.logger.Warn("Skipping file that cannot hold a chunk", "file", name)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteChunk removes the chunk's JSON file.
func (js *JSONStore) DeleteChunk(ctx context.Context, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := js.chunkPath(chunkID)
	if err != nil {
		return err
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			js.logger.Debug("Chunk file already absent", "id", chunkID)
			return nil
		}
		return fmt.Errorf("failed to delete chunk file %s: %w", filePath, err)
	}
	js.logger.Debug("Deleted chunk", "id", chunkID)
	return nil
}

// ReadAll retrieves every chunk by loading each one individually.
func (js *JSONStore) ReadAll(ctx context.Context) ([]*model.Chunk, error) {
	ids, err := js.GetAllChunkIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk IDs: %w", err)
	}

	chunks := make([]*model.Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := js.LoadChunk(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %s during ReadAll: %w", id, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Close is a no-op; the JSON store holds no open handles.
func (js *JSONStore) Close() error {
	return nil
}
