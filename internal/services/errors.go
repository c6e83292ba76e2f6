package services

import "errors"

// Validation errors.
var (
	ErrDuplicateUser       = errors.New("username already taken")
	ErrNoContent           = errors.New("no text or image provided for translation")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidToken       = errors.New("invalid token")
)

// ErrNotFound covers records that are absent or owned by someone else.
var ErrNotFound = errors.New("not found")

// Upstream errors.
var (
	ErrStorageFailed     = errors.New("object storage failed")
	ErrTranslationFailed = errors.New("translation failed")
	ErrPersistFailed     = errors.New("failed to save translation record")
)
