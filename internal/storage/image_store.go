package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrImageNotFound = errors.New("image not found")

// ImageStore holds uploaded images. Refs returned by Put are opaque strings
// that are persisted as image_path.
type ImageStore interface {
	Put(ctx context.Context, name string, data io.Reader) (string, error)

	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	Exists(ctx context.Context, ref string) (bool, error)

	Delete(ctx context.Context, ref string) error

	// Check verifies the store is reachable and writable.
	Check(ctx context.Context) error

	Location() string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(strings.ReplaceAll(name, " ", "_"), "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}

// StoredName builds a unique, filesystem-safe name for an upload.
func StoredName(original string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", now.UTC().Format("20060102_150405"), uuid.New().String(), sanitizeFilename(original))
}
