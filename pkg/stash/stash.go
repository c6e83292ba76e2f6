// Package stash stores uploaded image bytes and hands back a reference that
// can later be used to read the same bytes again.
package stash

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get when the reference resolves to nothing.
var ErrObjectNotFound = errors.New("stash: object not found")

// Stash is a byte-blob store addressed by key.
type Stash interface {
	// Put stores data under key and returns a stable reference to it.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Get returns the bytes behind a reference produced by Put.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes the object behind ref. Missing objects are not an error.
	Delete(ctx context.Context, ref string) error
}

// NewKey builds a per-request unique key that keeps the original extension,
// so two uploads of "menu.jpg" never collide.
func NewKey(filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	return fmt.Sprintf("uploads/%04d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}
