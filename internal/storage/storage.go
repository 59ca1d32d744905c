// Package storage persists uploaded document blobs. Two backends exist: a
// local filesystem store for development and an S3/MinIO store for
// deployments. Metadata stays in Postgres; only bytes live here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// MaxUploadBytes is the hard per-file limit: 10 MiB.
const MaxUploadBytes = 10 * 1024 * 1024

var (
	ErrTooLarge        = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("file type not allowed")
)

var allowedMimeTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
}

// Validate checks an upload against the size limit and MIME allow-list.
func Validate(sizeBytes int64, mimeType string) error {
	if sizeBytes > MaxUploadBytes {
		return ErrTooLarge
	}
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// NewKey builds a collision-resistant storage key under the owner's
// namespace. The extension comes from the validated MIME type, never from the
// user-supplied filename, so keys cannot be steered by input.
func NewKey(userID, mimeType string) string {
	ext := allowedMimeTypes[mimeType]
	return fmt.Sprintf("users/%s/%s%s", userID, uuid.NewString(), ext)
}

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
