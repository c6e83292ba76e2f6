package repositories

import (
	"context"

	"tabiyaku/internal/models"
)

// RecordRepository defines the interface for translation record access.
// Every read is scoped to the owning user.
type RecordRepository interface {
	Create(ctx context.Context, record *models.TranslationRecord) error
	GetByIDForUser(ctx context.Context, id, userID string) (*models.TranslationRecord, error)
	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.TranslationRecord, error)
}
