package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	idx := 0
	meta := &Metadata{
		ContentType:    "image/png",
		TicketID:       "ENG-1",
		RunID:          "run-1",
		CriterionIndex: &idx,
		CapturedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	key := BuildScreenshotKey("ENG-1", "run-1", 0, "png")
	require.NoError(t, store.Put(ctx, key, []byte("png-bytes"), meta))

	content, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), content)

	info, err := store.GetInfo(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len("png-bytes")), info.Size)
	assert.Equal(t, ComputeChecksum([]byte("png-bytes")), info.Checksum)
	assert.Equal(t, "image/png", info.ContentType)
	require.NotNil(t, info.Metadata)
	assert.Equal(t, "run-1", info.Metadata.RunID)
	require.NotNil(t, info.Metadata.CriterionIndex)
	assert.Equal(t, 0, *info.Metadata.CriterionIndex)
}

func TestLocalStorageMissingKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(ctx, "runs/none/result.json")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetInfo(ctx, "runs/none/result.json")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, "runs/none/result.json")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Delete(ctx, "runs/none/result.json"))
}

func TestLocalStorageListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	keys := []string{
		BuildResultKey("ENG-1", "run-2"),
		BuildScreenshotKey("ENG-1", "run-2", 1, ".jpg"),
		BuildResultKey("ENG-2", "run-3"),
	}
	for _, key := range keys {
		require.NoError(t, store.Put(ctx, key, []byte(key), &Metadata{ContentType: "text/plain"}))
	}

	listed, err := store.List(ctx, TicketPrefix("ENG-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/ENG-1/run-2/criterion-02.jpg",
		"runs/ENG-1/run-2/result.json",
	}, listed)

	require.NoError(t, store.Delete(ctx, keys[0]))
	ok, err := store.Exists(ctx, keys[0])
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := store.List(ctx, "runs/ENG-9/")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestKeyToPathStaysInsideBase(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	tests := []string{
		"../../etc/passwd",
		"/absolute/key",
		`..\..\windows`,
		"runs/../../escape",
	}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			path := store.keyToPath(key)
			rel, err := filepath.Rel(base, path)
			require.NoError(t, err)
			assert.False(t, strings.HasPrefix(rel, ".."), "path %s escapes %s", path, base)
		})
	}
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "runs/ENG-12/abc/criterion-01.png", BuildScreenshotKey("ENG-12", "abc", 0, ""))
	assert.Equal(t, "runs/ENG-12/abc/criterion-10.webp", BuildScreenshotKey("ENG-12", "abc", 9, ".webp"))
	assert.Equal(t, "runs/a_b/_/result.json", BuildResultKey("a/b", ".."))
	assert.Equal(t, "runs/_/", TicketPrefix(""))
}

func TestScreenshotContentType(t *testing.T) {
	tests := map[string]string{
		"":      "image/png",
		" ":     "image/png",
		"png":   "image/png",
		".webp": "image/webp",
		"JPG":   "image/jpeg",
		"jpeg":  "image/jpeg",
	}
	for ext, want := range tests {
		t.Run(ext, func(t *testing.T) {
			assert.Equal(t, want, ScreenshotContentType(ext))
		})
	}
}
