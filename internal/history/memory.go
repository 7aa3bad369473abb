package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kartick026/trafficloud/internal/models"
)

// MemoryAggregator is an in-process Aggregator for development and tests.
// It mirrors the additive-upsert semantics of the Redis backend.
type MemoryAggregator struct {
	mu      sync.Mutex
	buckets map[string]*models.HourlyAggregate
}

// NewMemoryAggregator creates an empty in-memory aggregator.
func NewMemoryAggregator() *MemoryAggregator {
	return &MemoryAggregator{
		buckets: make(map[string]*models.HourlyAggregate),
	}
}

func (a *MemoryAggregator) Accumulate(ctx context.Context, date string, hour int, vehicles int, observedAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := fmt.Sprintf("%s:%02d", date, hour)

	bucket, ok := a.buckets[key]
	if !ok {
		bucket = &models.HourlyAggregate{Date: date, Hour: hour}
		a.buckets[key] = bucket
	}

	bucket.TotalVehicles += vehicles
	bucket.AnalysisCount++
	bucket.LastUpdated = observedAt.UTC()

	return nil
}

func (a *MemoryAggregator) Get(ctx context.Context, date string, hour int) (*models.HourlyAggregate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket, ok := a.buckets[fmt.Sprintf("%s:%02d", date, hour)]
	if !ok {
		return nil, ErrBucketNotFound
	}

	copied := *bucket
	return &copied, nil
}

func (a *MemoryAggregator) Close() error {
	return nil
}
