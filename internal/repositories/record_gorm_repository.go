package repositories

import (
	"context"
	"errors"
	"fmt"

	"tabiyaku/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMRecordRepository is a GORM implementation of RecordRepository.
type GORMRecordRepository struct {
	db *gorm.DB
}

// NewGORMRecordRepository creates a new instance of GORMRecordRepository.
func NewGORMRecordRepository(db *gorm.DB) *GORMRecordRepository {
	return &GORMRecordRepository{
		db: db,
	}
}

// Create inserts a record inside its own transaction.
func (r *GORMRecordRepository) Create(ctx context.Context, record *models.TranslationRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create translation record: %w", err)
	}
	return nil
}

// GetByIDForUser fetches a record only if it belongs to userID.
func (r *GORMRecordRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.TranslationRecord, error) {
	var record models.TranslationRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("translation record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get translation record %s: %w", id, err)
	}
	return &record, nil
}

// ListByUser retrieves all records owned by userID, newest first.
func (r *GORMRecordRepository) ListByUser(ctx context.Context, userID string) ([]models.TranslationRecord, error) {
	records := []models.TranslationRecord{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list translation records for user %s: %w", userID, err)
	}
	return records, nil
}
