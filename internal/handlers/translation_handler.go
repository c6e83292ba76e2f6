package handlers

import (
	"fmt"
	"io"

	"tabiyaku/internal/middleware"
	"tabiyaku/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// imageFields are the multipart field names accepted for the image.
var imageFields = []string{"file", "image"}

// TranslationHandler handles uploads and translation record retrieval.
type TranslationHandler struct {
	service *services.TranslationService
	logger  *zap.Logger
}

// NewTranslationHandler creates a new TranslationHandler.
func NewTranslationHandler(service *services.TranslationService, logger *zap.Logger) *TranslationHandler {
	return &TranslationHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the upload and record routes, all authenticated.
func (h *TranslationHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	router.Post("/upload", authRequired, h.HandleUpload)

	records := router.Group("/records", authRequired)
	records.Get("/", h.HandleListRecords)
	records.Get("/:id", h.HandleGetRecord)
	records.Get("/:id/image", h.HandleGetRecordImage)
}

// HandleUpload accepts optional text and an optional image and returns the
// created record's id with its translation.
func (h *TranslationHandler) HandleUpload(c *fiber.Ctx) error {
	image, err := readImage(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid upload",
			"error":   err.Error(),
		})
	}

	in := services.UploadInput{
		Text:  c.FormValue("text"),
		Image: image,
	}
	if _, err := in.Validate(); err != nil {
		return writeError(c, h.logger, err)
	}

	record, err := h.service.Translate(c.UserContext(), middleware.UserID(c), in)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"record_id":           record.ID,
		"chinese_translation": record.ChineseTranslation,
	})
}

// readImage returns the first image field present, or nil when the request
// carries none.
func readImage(c *fiber.Ctx) (*services.ImageUpload, error) {
	for _, field := range imageFields {
		fh, err := c.FormFile(field)
		if err != nil {
			continue
		}

		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", field, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", field, err)
		}
		return &services.ImageUpload{Filename: fh.Filename, Data: data}, nil
	}
	return nil, nil
}

// HandleListRecords lists the caller's records, newest first.
func (h *TranslationHandler) HandleListRecords(c *fiber.Ctx) error {
	records, err := h.service.ListRecords(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"records": records,
	})
}

// HandleGetRecord returns one of the caller's records.
func (h *TranslationHandler) HandleGetRecord(c *fiber.Ctx) error {
	record, err := h.service.GetRecord(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(record)
}

// HandleGetRecordImage streams the stored image of one of the caller's records.
func (h *TranslationHandler) HandleGetRecordImage(c *fiber.Ctx) error {
	data, contentType, err := h.service.GetRecordImage(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}
