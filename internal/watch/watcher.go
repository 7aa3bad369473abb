// Package watch feeds frames dropped into a spool directory through the
// pipeline. The development front door, standing in for object-storage
// change notifications.
package watch

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/kartick026/trafficloud/internal/imagemeta"
	"github.com/kartick026/trafficloud/internal/models"
	"github.com/kartick026/trafficloud/internal/pipeline"
)

// BatchProcessor runs the pipeline over frame references.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, refs []models.FrameReference) models.BatchResult
}

// Watcher monitors a spool directory for new frame files and submits them
// to the coordinator.
type Watcher struct {
	dir         string
	coordinator BatchProcessor
}

// New creates a Watcher over dir.
func New(dir string, coordinator BatchProcessor) *Watcher {
	return &Watcher{dir: dir, coordinator: coordinator}
}

// Start begins watching. Frames are submitted one at a time as they
// appear; non-image files are skipped. Returns after registering the
// watch; processing continues until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
					w.submit(ctx, evt.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Watcher error: %v", err)
			}
		}
	}()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	log.Printf("Watching spool directory: %s", w.dir)
	return nil
}

// Backfill submits frames already present in the spool directory.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(w.dir, "*"))
	if err != nil {
		return err
	}

	var refs []models.FrameReference
	for _, entry := range entries {
		if key, ok := w.keyFor(entry); ok {
			refs = append(refs, models.FrameReference{Key: key})
		}
	}

	if len(refs) == 0 {
		return nil
	}

	log.Printf("Backfilling %d frames from %s", len(refs), w.dir)
	w.coordinator.ProcessBatch(ctx, refs)
	return nil
}

func (w *Watcher) submit(ctx context.Context, path string) {
	key, ok := w.keyFor(path)
	if !ok {
		log.Printf("Skipping non-image file: %s", path)
		return
	}

	log.Printf("Processing spooled frame: %s", key)
	w.coordinator.ProcessBatch(ctx, []models.FrameReference{{Key: key}})
}

// keyFor converts an absolute spool path to a store-relative key.
func (w *Watcher) keyFor(path string) (string, bool) {
	if !imagemeta.IsImageFile(path) {
		return "", false
	}

	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return "", false
	}

	return filepath.ToSlash(rel), true
}

var _ BatchProcessor = (*pipeline.Coordinator)(nil)
