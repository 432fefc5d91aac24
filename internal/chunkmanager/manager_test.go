package chunkmanager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-element-manager/internal/model"
	"go-element-manager/internal/storage"
)

func newTestManager(t *testing.T) *ChunkManager {
	t.Helper()
	store, err := storage.NewJSONStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := NewManager(store, nil)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return m
}

func TestCreateChunk(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	created, err := m.CreateChunk(ctx, &model.Chunk{Name: "  Footer ", Snippet: "<footer/>"})
	require.NoError(t, err)
	assert.Equal(t, "Footer", created.Name)
	_, err = uuid.Parse(created.ID)
	assert.NoError(t, err, "generated id should be a uuid")
	assert.False(t, created.CreatedAt.IsZero())

	loaded, err := m.GetStore().LoadChunk(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "<footer/>", loaded.Snippet)

	withID, err := m.CreateChunk(ctx, &model.Chunk{ID: "5", Name: "Header"})
	require.NoError(t, err)
	assert.Equal(t, "5", withID.ID)

	mixed, err := m.CreateChunk(ctx, &model.Chunk{ID: "SiteNav", Name: "Nav"})
	require.NoError(t, err)
	assert.Equal(t, "SiteNav", mixed.ID)
}

func TestCreateChunkRejects(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateChunk(ctx, &model.Chunk{ID: "5", Name: "Footer"})
	require.NoError(t, err)

	_, err = m.CreateChunk(ctx, &model.Chunk{Name: "footer"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = m.CreateChunk(ctx, &model.Chunk{ID: "5", Name: "Other"})
	assert.ErrorContains(t, err, "already exists")

	_, err = m.CreateChunk(ctx, &model.Chunk{ID: "../x", Name: "Evil"})
	assert.ErrorContains(t, err, "invalid chunk id")

	_, err = m.CreateChunk(ctx, &model.Chunk{Name: ""})
	assert.Error(t, err)
}

func TestUpdateLockAndProperties(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	c, err := m.CreateChunk(ctx, &model.Chunk{ID: "5", Name: "Footer"})
	require.NoError(t, err)

	locked, err := m.SetLocked(ctx, "5", true)
	require.NoError(t, err)
	assert.True(t, locked.Locked)
	assert.True(t, locked.UpdatedAt.After(c.UpdatedAt))
	assert.True(t, locked.CreatedAt.Equal(c.CreatedAt))

	props := []model.Property{{Name: "color", Type: model.PropertyColor, Value: "#fff"}}
	updated, err := m.SetProperties(ctx, "5", props)
	require.NoError(t, err)
	assert.Equal(t, props, updated.Properties)
	assert.True(t, updated.Locked)

	_, err = m.SetProperties(ctx, "5", []model.Property{{Name: "a"}, {Name: "a"}})
	assert.ErrorContains(t, err, "duplicate property")

	_, err = m.UpdateChunk(ctx, "5", func(c *model.Chunk) error {
		c.ID = "hijack"
		c.Name = "Renamed"
		return nil
	})
	require.NoError(t, err)
	renamed, err := m.GetStore().LoadChunk(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Name)

	_, err = m.SetLocked(ctx, "missing", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteChunk(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateChunk(ctx, &model.Chunk{ID: "5", Name: "Footer"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteChunk(ctx, "5"))
	_, err = m.GetStore().LoadChunk(ctx, "5")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, m.DeleteChunk(ctx, "5"), storage.ErrNotFound)
}

const seed = `
chunks:
  - id: "5"
    name: Footer
    category: layout
    snippet: "<footer>[[+year]]</footer>"
    properties:
      - name: year
        type: numberfield
        value: 2024
      - name: align
        type: list
        value: left
        options:
          - {text: Left, value: left}
          - {text: Right, value: right}
  - name: Header
    locked: true
`

func TestImport(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	res, err := m.Import(ctx, strings.NewReader(seed))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2}, res)

	footer, err := m.GetStore().LoadChunk(ctx, "5")
	require.NoError(t, err)
	require.Len(t, footer.Properties, 2)
	assert.Equal(t, "align", footer.Properties[1].Name)
	assert.Equal(t, model.PropertyOptions{{Text: "Left", Value: "left"}, {Text: "Right", Value: "right"}}, footer.Properties[1].Options)

	// Re-importing replaces the chunk with a known id and keeps its creation time.
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunks:\n  - id: \"5\"\n    name: Footer\n    snippet: new\n"), 0644))
	res, err = m.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Updated: 1}, res)

	again, err := m.GetStore().LoadChunk(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "new", again.Snippet)
	assert.True(t, again.CreatedAt.Equal(footer.CreatedAt))
}

func TestImportValidatesBeforeWriting(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Import(ctx, strings.NewReader("chunks:\n  - name: A\n  - name: a\n"))
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = m.Import(ctx, strings.NewReader("chunks:\n  - name: A\n    colour: red\n"))
	assert.ErrorContains(t, err, "decoding seed file")

	ids, err := m.GetStore().GetAllChunkIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	res, err := m.Import(ctx, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{}, res)
}

func TestImportChecksStoredNamesBeforeWriting(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateChunk(ctx, &model.Chunk{ID: "old", Name: "Header"})
	require.NoError(t, err)

	res, err := m.Import(ctx, strings.NewReader("chunks:\n  - id: a\n    name: Footer\n  - name: header\n"))
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, ImportResult{}, res)

	_, err = m.Import(ctx, strings.NewReader("chunks:\n  - id: a\n    name: Footer\n  - id: a\n    name: Other\n"))
	assert.ErrorContains(t, err, "share id a")

	ids, err := m.GetStore().GetAllChunkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids, "nothing may be written by a failed import")

	// Renaming the stored chunk frees its name for a later seed entry.
	res, err = m.Import(ctx, strings.NewReader("chunks:\n  - id: old\n    name: Masthead\n  - name: Header\n"))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 1, Updated: 1}, res)
}
