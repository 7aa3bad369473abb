package framestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartick026/trafficloud/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationFromKey(t *testing.T) {
	assert.Equal(t, "main-street", LocationFromKey("cameras/main-street/frame_001.jpg"))
	assert.Equal(t, "junction-5", LocationFromKey("junction-5/frame.png"))
	assert.Equal(t, "unknown", LocationFromKey("frame.jpg"))
	assert.Equal(t, "unknown", LocationFromKey(""))
}

func TestLocalStore_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "main-street"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main-street", "frame.jpg"), []byte("jpeg-bytes"), 0o644))

	store := NewLocalStore(dir)
	data, err := store.Fetch(context.Background(), models.FrameReference{Key: "main-street/frame.jpg"})

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestLocalStore_FetchMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	_, err := store.Fetch(context.Background(), models.FrameReference{Key: "nope/frame.jpg"})

	assert.ErrorIs(t, err, ErrFrameNotFound)
}
