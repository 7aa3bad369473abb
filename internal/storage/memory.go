package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/kartick026/trafficloud/internal/models"
)

// MemoryStore is an in-process AnalysisStore for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.AnalysisRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.AnalysisRecord),
	}
}

func (s *MemoryStore) PutAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.FrameID] = *record
	return nil
}

func (s *MemoryStore) RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.AnalysisRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
