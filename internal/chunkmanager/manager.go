package chunkmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"go-element-manager/internal/model"
	"go-element-manager/internal/storage"
	"go-element-manager/pkg/fsutils"
)

// ErrDuplicateName is returned when another chunk already uses the name.
var ErrDuplicateName = errors.New("chunk name already in use")

// ChunkManager provides the maintenance operations on chunks (create, update,
// lock, delete, import). It is used by the CLI to seed and curate the store
// the manager pages read from.
type ChunkManager struct {
	store  storage.ChunkStore
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a new ChunkManager instance.
func NewManager(store storage.ChunkStore, logger *slog.Logger) *ChunkManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ChunkManager{store: store, logger: logger, now: time.Now}
}

// GetStore returns the underlying store.
func (m *ChunkManager) GetStore() storage.ChunkStore {
	return m.store
}

// CreateChunk saves a new chunk. An empty ID gets a generated UUID; the name
// must not be used by any other chunk.
func (m *ChunkManager) CreateChunk(ctx context.Context, chunk *model.Chunk) (*model.Chunk, error) {
	c := chunk.Clone()
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		c.ID = uuid.New().String()
		m.logger.Debug("Generated chunk ID", "id", c.ID)
	} else if !fsutils.IsSafeFilename(c.ID) {
		return nil, fmt.Errorf("invalid chunk id %q: try %q", c.ID, fsutils.SanitizeFilename(c.ID))
	}
	m.logger.Info("Creating chunk", "name", c.Name, "id", c.ID)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if _, err := m.store.LoadChunk(ctx, c.ID); err == nil {
		return nil, fmt.Errorf("chunk with id %s already exists", c.ID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("checking chunk id %s: %w", c.ID, err)
	}
	if err := m.checkNameFree(ctx, c.Name, c.ID); err != nil {
		return nil, err
	}

	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := m.store.SaveChunk(ctx, c); err != nil {
		m.logger.Error("Error saving chunk", "error", err, "name", c.Name, "id", c.ID)
		return nil, fmt.Errorf("saving chunk failed: %w", err)
	}
	m.logger.Info("Successfully created chunk", "name", c.Name, "id", c.ID)
	return c, nil
}

// UpdateChunk loads the chunk, applies fn and saves the result. The ID and
// creation time cannot be changed by fn.
func (m *ChunkManager) UpdateChunk(ctx context.Context, id string, fn func(*model.Chunk) error) (*model.Chunk, error) {
	c, err := m.store.LoadChunk(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading chunk %s: %w", id, err)
	}
	createdAt := c.CreatedAt
	if err := fn(c); err != nil {
		return nil, err
	}
	c.ID, c.CreatedAt = id, createdAt
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := m.checkNameFree(ctx, c.Name, id); err != nil {
		return nil, err
	}
	c.UpdatedAt = m.now()
	if err := m.store.SaveChunk(ctx, c); err != nil {
		m.logger.Error("Error updating chunk", "id", id, "error", err)
		return nil, fmt.Errorf("saving chunk %s: %w", id, err)
	}
	m.logger.Info("Updated chunk", "id", id, "name", c.Name)
	return c, nil
}

// SetLocked locks or unlocks a chunk for editing.
func (m *ChunkManager) SetLocked(ctx context.Context, id string, locked bool) (*model.Chunk, error) {
	return m.UpdateChunk(ctx, id, func(c *model.Chunk) error {
		c.Locked = locked
		return nil
	})
}

// SetProperties replaces the default property set of a chunk.
func (m *ChunkManager) SetProperties(ctx context.Context, id string, props []model.Property) (*model.Chunk, error) {
	return m.UpdateChunk(ctx, id, func(c *model.Chunk) error {
		c.Properties = props
		return nil
	})
}

// DeleteChunk removes a chunk. A missing chunk is reported as an error so the
// CLI can tell the user.
func (m *ChunkManager) DeleteChunk(ctx context.Context, id string) error {
	m.logger.Info("Processing delete request", "id", id)
	c, err := m.store.LoadChunk(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("Chunk not found, cannot delete", "id", id)
		}
		return fmt.Errorf("loading chunk %s: %w", id, err)
	}
	if err := m.store.DeleteChunk(ctx, id); err != nil {
		m.logger.Error("Error deleting chunk", "id", id, "error", err)
		return fmt.Errorf("deleting chunk %s: %w", id, err)
	}
	m.logger.Info("Successfully deleted chunk", "id", id, "name", c.Name)
	return nil
}

func (m *ChunkManager) checkNameFree(ctx context.Context, name, selfID string) error {
	all, err := m.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("listing chunks: %w", err)
	}
	for _, other := range all {
		if other.ID != selfID && strings.EqualFold(other.Name, name) {
			return fmt.Errorf("%w: %q (id %s)", ErrDuplicateName, name, other.ID)
		}
	}
	return nil
}

// checkSeedNames replays the import against the stored names so that every
// clash is found before the first write.
func (m *ChunkManager) checkSeedNames(ctx context.Context, seed []*model.Chunk) error {
	all, err := m.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("listing chunks: %w", err)
	}
	names := make(map[string]string, len(all)+len(seed)) // id -> name
	for _, c := range all {
		names[c.ID] = c.Name
	}

	seen := make(map[string]int, len(seed))
	for i, c := range seed {
		key := c.ID
		if key == "" {
			key = fmt.Sprintf("\x00seed-%d", i)
		} else if j, dup := seen[key]; dup {
			return fmt.Errorf("seed chunks %d and %d share id %s", j, i, key)
		}
		seen[key] = i

		for id, name := range names {
			if id != key && strings.EqualFold(name, c.Name) {
				return fmt.Errorf("seed chunk %d: %w: %q (id %s)", i, ErrDuplicateName, c.Name, strings.TrimPrefix(id, "\x00"))
			}
		}
		names[key] = c.Name
	}
	return nil
}

// SeedFile is the YAML document accepted by Import.
type SeedFile struct {
	Chunks []*model.Chunk `yaml:"chunks"`
}

// ImportResult counts what an import did.
type ImportResult struct {
	Created int
	Updated int
}

// ImportFile reads a YAML seed file and imports it.
func (m *ChunkManager) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return m.Import(ctx, f)
}

// Import creates every chunk of the seed document. A chunk whose ID already
// exists is replaced, keeping its creation time. The whole document is
// validated before anything is written.
func (m *ChunkManager) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("decoding seed file: %w", err)
	}

	for i, c := range seed.Chunks {
		if c == nil {
			return ImportResult{}, fmt.Errorf("seed chunk %d is empty", i)
		}
		c.Name = strings.TrimSpace(c.Name)
		if err := c.Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("seed chunk %d: %w", i, err)
		}
		if c.ID != "" && !fsutils.IsSafeFilename(c.ID) {
			return ImportResult{}, fmt.Errorf("seed chunk %d: invalid chunk id %q", i, c.ID)
		}
	}
	if err := m.checkSeedNames(ctx, seed.Chunks); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for _, c := range seed.Chunks {
		if c.ID != "" {
			if _, err := m.store.LoadChunk(ctx, c.ID); err == nil {
				replacement := c
				if _, err := m.UpdateChunk(ctx, c.ID, func(existing *model.Chunk) error {
					*existing = *replacement.Clone()
					return nil
				}); err != nil {
					return res, err
				}
				res.Updated++
				continue
			}
		}
		if _, err := m.CreateChunk(ctx, c); err != nil {
			return res, err
		}
		res.Created++
	}
	m.logger.Info("Imported chunks", "created", res.Created, "updated", res.Updated)
	return res, nil
}
