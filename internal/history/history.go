// Package history maintains rolling per-hour traffic aggregates.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/kartick026/trafficloud/internal/models"
)

// Aggregator is atomic-add access to hourly aggregates keyed by
// (date, hour). Accumulate must be additive at the storage layer so
// concurrent pipeline invocations never lose updates; callers must invoke
// it exactly once per analysis record.
type Aggregator interface {
	// Accumulate adds vehicles to the bucket's running total, increments
	// its analysis count, and stamps last_updated. The bucket is created on
	// first write.
	Accumulate(ctx context.Context, date string, hour int, vehicles int, observedAt time.Time) error

	// Get returns the aggregate for a bucket, or ErrBucketNotFound.
	Get(ctx context.Context, date string, hour int) (*models.HourlyAggregate, error)

	Close() error
}

var (
	// ErrBucketNotFound - no record has fallen into the bucket yet
	ErrBucketNotFound = errors.New("history: aggregate bucket not found")

	// ErrUnsupportedAggregator - requested backend has no implementation
	ErrUnsupportedAggregator = errors.New("history: unsupported history store")
)

// New creates the configured Aggregator backend.
func New(kind, redisAddr, redisPassword string, redisDB int) (Aggregator, error) {
	switch kind {
	case "redis":
		return NewRedisAggregator(redisAddr, redisPassword, redisDB)
	case "memory":
		return NewMemoryAggregator(), nil
	default:
		return nil, ErrUnsupportedAggregator
	}
}
