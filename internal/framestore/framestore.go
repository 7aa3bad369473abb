// Package framestore resolves frame references to raw image bytes.
package framestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kartick026/trafficloud/internal/models"
)

// FrameSource fetches the raw bytes for a referenced frame. The object
// storage substrate itself is an external collaborator; implementations
// only need to honour this contract.
type FrameSource interface {
	Fetch(ctx context.Context, ref models.FrameReference) ([]byte, error)
}

// ErrFrameNotFound - the referenced object does not exist
var ErrFrameNotFound = errors.New("framestore: frame not found")

// LocationFromKey extracts the camera location from an object key. Keys
// are laid out as .../{location}/{filename}; a key with no directory
// component maps to "unknown".
func LocationFromKey(key string) string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[len(parts)-2]
}

// LocalStore serves frames from a directory tree, keyed by relative path.
// The development stand-in for bucket storage.
type LocalStore struct {
	root string
}

// NewLocalStore creates a frame source rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

func (s *LocalStore) Fetch(ctx context.Context, ref models.FrameReference) ([]byte, error) {
	path := filepath.Join(s.root, filepath.FromSlash(ref.Key))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read frame %s: %w", ref, err)
	}

	return data, nil
}
