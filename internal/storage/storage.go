// Package storage provides the point-in-time store for analysis records.
package storage

import (
	"context"
	"errors"

	"github.com/kartick026/trafficloud/internal/models"
)

// AnalysisStore is upsert-by-key access to analysis records, keyed on
// frame id. Implementations must treat records as immutable values.
type AnalysisStore interface {
	// PutAnalysis upserts the record by its frame id. A same-key write
	// replaces the prior record.
	PutAnalysis(ctx context.Context, record *models.AnalysisRecord) error

	// RecentAnalyses returns up to limit records, newest first.
	RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error)

	Close(ctx context.Context) error
}

var (
	// ErrUnsupportedStore - requested backend has no implementation
	ErrUnsupportedStore = errors.New("storage: unsupported analysis store")
)

// New creates the configured AnalysisStore backend.
func New(ctx context.Context, kind, mongoURI, database string) (AnalysisStore, error) {
	switch kind {
	case "mongo", "mongodb":
		return NewMongoStore(ctx, mongoURI, database)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, ErrUnsupportedStore
	}
}
