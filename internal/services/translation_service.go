package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"tabiyaku/internal/models"
	"tabiyaku/internal/repositories"
	"tabiyaku/pkg/oracle"
	"tabiyaku/pkg/rabbitmq"
	"tabiyaku/pkg/stash"

	"go.uber.org/zap"
)

// allowedImageTypes maps accepted upload extensions to their content type.
var allowedImageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// ObjectStash stores uploaded image bytes.
type ObjectStash interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// TranslationOracle performs the actual translation.
type TranslationOracle interface {
	Translate(ctx context.Context, req oracle.Request) (string, error)
}

// EventPublisher announces committed records. Optional.
type EventPublisher interface {
	PublishTranslationCreated(event rabbitmq.TranslationEvent) error
}

// ImageUpload is an uploaded image file.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// UploadInput is one translation request. At least one of Text or Image is set.
type UploadInput struct {
	Text  string
	Image *ImageUpload
}

// Validate checks the input before any side effect happens and returns the
// image content type, if an image is present.
func (in UploadInput) Validate() (string, error) {
	hasText := strings.TrimSpace(in.Text) != ""
	hasImage := in.Image != nil && len(in.Image.Data) > 0
	if !hasText && !hasImage {
		return "", ErrNoContent
	}
	if !hasImage {
		return "", nil
	}
	contentType, ok := ImageContentType(in.Image.Filename)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, in.Image.Filename)
	}
	return contentType, nil
}

// ImageContentType reports the content type for an allowed image filename.
func ImageContentType(filename string) (string, bool) {
	ct, ok := allowedImageTypes[strings.ToLower(path.Ext(filename))]
	return ct, ok
}

// TranslationService runs the upload, translate, persist flow and serves
// the caller's records.
type TranslationService struct {
	userRepo   repositories.UserRepository
	recordRepo repositories.RecordRepository
	stash      ObjectStash
	oracle     TranslationOracle
	publisher  EventPublisher
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewTranslationService creates a new TranslationService. publisher may be nil.
func NewTranslationService(
	userRepo repositories.UserRepository,
	recordRepo repositories.RecordRepository,
	objects ObjectStash,
	translator TranslationOracle,
	publisher EventPublisher,
	timeout time.Duration,
	logger *zap.Logger,
) *TranslationService {
	return &TranslationService{
		userRepo:   userRepo,
		recordRepo: recordRepo,
		stash:      objects,
		oracle:     translator,
		publisher:  publisher,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Translate stores the image (if any), calls the oracle and records the
// result. Nothing is written to the ledger unless the oracle succeeds.
func (s *TranslationService) Translate(ctx context.Context, userID string, in UploadInput) (*models.TranslationRecord, error) {
	contentType, err := in.Validate()
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	log := s.logger.With(zap.String("user_id", userID))
	req := oracle.Request{Text: strings.TrimSpace(in.Text)}

	var imageRef string
	if in.Image != nil && len(in.Image.Data) > 0 {
		key := stash.NewKey(in.Image.Filename, s.now().UTC())
		imageRef, err = s.stash.Put(ctx, key, contentType, in.Image.Data)
		if err != nil {
			log.Error("failed to store upload", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
		}
		req.Image = in.Image.Data
		req.ImageContentType = contentType
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	translation, err := s.oracle.Translate(callCtx, req)
	if err != nil {
		log.Error("translation failed", zap.String("image_ref", imageRef), zap.Error(err))
		s.discard(ctx, log, imageRef)
		return nil, fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}

	record := &models.TranslationRecord{
		UserID:             userID,
		SourceText:         req.Text,
		ImageRef:           imageRef,
		ChineseTranslation: translation,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.recordRepo.Create(ctx, record); err != nil {
		// The oracle already answered; keep the result recoverable from logs.
		log.Error("failed to persist translation",
			zap.String("image_ref", imageRef),
			zap.String("chinese_translation", translation),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	s.publish(log, record)
	log.Info("translation recorded", zap.String("record_id", record.ID))
	return record, nil
}

// discard removes an upload that no record will reference. Best effort.
func (s *TranslationService) discard(ctx context.Context, log *zap.Logger, imageRef string) {
	if imageRef == "" {
		return
	}
	if err := s.stash.Delete(context.WithoutCancel(ctx), imageRef); err != nil {
		log.Warn("failed to discard orphaned upload", zap.String("image_ref", imageRef), zap.Error(err))
	}
}

func (s *TranslationService) publish(log *zap.Logger, record *models.TranslationRecord) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishTranslationCreated(rabbitmq.TranslationEvent{
		RecordID:  record.ID,
		UserID:    record.UserID,
		ImageRef:  record.ImageRef,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		log.Warn("failed to publish translation event", zap.String("record_id", record.ID), zap.Error(err))
	}
}

// GetRecord returns one of the caller's records.
func (s *TranslationService) GetRecord(ctx context.Context, userID, id string) (*models.TranslationRecord, error) {
	record, err := s.recordRepo.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return record, nil
}

// ListRecords returns the caller's records, newest first.
func (s *TranslationService) ListRecords(ctx context.Context, userID string) ([]models.TranslationRecord, error) {
	records, err := s.recordRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// GetRecordImage returns the stored image of one of the caller's records.
func (s *TranslationService) GetRecordImage(ctx context.Context, userID, id string) ([]byte, string, error) {
	record, err := s.GetRecord(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if record.ImageRef == "" {
		return nil, "", ErrNotFound
	}

	data, err := s.stash.Get(ctx, record.ImageRef)
	if err != nil {
		if errors.Is(err, stash.ErrObjectNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	contentType, _ := ImageContentType(record.ImageRef)
	return data, contentType, nil
}
