package history

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kartick026/trafficloud/internal/models"
)

const (
	fieldTotalVehicles = "total_vehicles"
	fieldAnalysisCount = "analysis_count"
	fieldLastUpdated   = "last_updated"
)

// RedisAggregator stores one hash per (date, hour) bucket. HINCRBY gives
// the storage-native atomic add the aggregate contract requires.
type RedisAggregator struct {
	rdb *redis.Client
}

// NewRedisAggregator connects to Redis and verifies the connection.
func NewRedisAggregator(addr, password string, db int) (*RedisAggregator, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Connected to Redis: %s", addr)

	return &RedisAggregator{rdb: rdb}, nil
}

func bucketKey(date string, hour int) string {
	return fmt.Sprintf("history:%s:%02d", date, hour)
}

// Accumulate atomically adds to the bucket's counters.
func (a *RedisAggregator) Accumulate(ctx context.Context, date string, hour int, vehicles int, observedAt time.Time) error {
	key := bucketKey(date, hour)

	pipe := a.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, fieldTotalVehicles, int64(vehicles))
	pipe.HIncrBy(ctx, key, fieldAnalysisCount, 1)
	pipe.HSet(ctx, key, fieldLastUpdated, observedAt.UTC().Format(time.RFC3339))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to accumulate history bucket %s: %w", key, err)
	}

	return nil
}

// Get reads a bucket back.
func (a *RedisAggregator) Get(ctx context.Context, date string, hour int) (*models.HourlyAggregate, error) {
	key := bucketKey(date, hour)

	fields, err := a.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history bucket %s: %w", key, err)
	}

	if len(fields) == 0 {
		return nil, ErrBucketNotFound
	}

	aggregate := &models.HourlyAggregate{
		Date: date,
		Hour: hour,
	}

	if v, err := strconv.Atoi(fields[fieldTotalVehicles]); err == nil {
		aggregate.TotalVehicles = v
	}
	if v, err := strconv.Atoi(fields[fieldAnalysisCount]); err == nil {
		aggregate.AnalysisCount = v
	}
	if ts, err := time.Parse(time.RFC3339, fields[fieldLastUpdated]); err == nil {
		aggregate.LastUpdated = ts
	}

	return aggregate, nil
}

// Close closes the Redis connection.
func (a *RedisAggregator) Close() error {
	return a.rdb.Close()
}
