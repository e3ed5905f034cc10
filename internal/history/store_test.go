package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, status string, started time.Time) Entry {
	return Entry{
		ID:          id,
		Mode:        "compress",
		Codec:       "zstd",
		Source:      "/data/" + id,
		Destination: "/data/" + id + ".fp",
		Status:      status,
		Blocks:      4,
		SourceBytes: 4 << 20,
		OutputBytes: 1 << 20,
		StartedAt:   started,
		Elapsed:     1500 * time.Millisecond,
	}
}

func TestStoreRecordGetList(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(entry(fmt.Sprintf("run%d", i), "success", base.Add(time.Duration(i)*time.Hour))))
	}

	got, err := store.Get("run2")
	require.NoError(t, err)
	assert.Equal(t, "/data/run2", got.Source)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.True(t, got.StartedAt.Equal(base.Add(2*time.Hour)))
	assert.InDelta(t, 0.25, got.Ratio(), 1e-9)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, e := range list {
		assert.Equal(t, fmt.Sprintf("run%d", 4-i), e.ID, "newest first")
	}

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete("run0"))
	assert.ErrorIs(t, store.Delete("run0"), ErrNotFound)

	assert.Error(t, store.Record(Entry{}))
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(entry("kept", "success", time.Now())))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get("kept")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.ID)
	assert.Equal(t, path, store.Path())
}

func TestStorePrune(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(entry("new", "success", now.Add(-time.Hour))))
	require.NoError(t, store.Record(entry("failed", "fault", now.Add(-2*time.Hour))))
	require.NoError(t, store.Record(entry("old", "success", now.Add(-40*24*time.Hour))))

	deleted, err := store.Prune(Policy{MaxAge: 30 * 24 * time.Hour}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"failed", "old"}, deleted)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)

	deleted, err = store.Prune(Policy{}, now)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}
