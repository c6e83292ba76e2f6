package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tabiyaku/internal/models"

	"github.com/google/uuid"
)

// MockRecordRepository is an in-memory implementation of RecordRepository.
type MockRecordRepository struct {
	records map[string]models.TranslationRecord
	mu      sync.RWMutex
}

// NewMockRecordRepository creates a new instance of MockRecordRepository.
func NewMockRecordRepository() *MockRecordRepository {
	return &MockRecordRepository{
		records: make(map[string]models.TranslationRecord),
	}
}

// Create adds a new record.
func (r *MockRecordRepository) Create(_ context.Context, record *models.TranslationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	r.records[record.ID] = *record
	return nil
}

// GetByIDForUser returns the record only when userID owns it.
func (r *MockRecordRepository) GetByIDForUser(_ context.Context, id, userID string) (*models.TranslationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok || record.UserID != userID {
		return nil, fmt.Errorf("translation record %s: %w", id, ErrNotFound)
	}
	return &record, nil
}

// ListByUser returns the user's records ordered by CreatedAt descending.
func (r *MockRecordRepository) ListByUser(_ context.Context, userID string) ([]models.TranslationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := []models.TranslationRecord{}
	for _, record := range r.records {
		if record.UserID == userID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Count returns the total number of stored records.
func (r *MockRecordRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
