package ports

import (
	"context"
	"io"
	"time"

	"dropshare-api/internal/domain/container"
)

// BlobOutcome is the per-object result of a delete attempt.
type BlobOutcome int

const (
	BlobDeleted BlobOutcome = iota
	BlobNotFound
	BlobFailed
)

func (o BlobOutcome) String() string {
	switch o {
	case BlobDeleted:
		return "deleted"
	case BlobNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

type (
	BlobUpload struct {
		Name string
		Size int64
		Body io.Reader
		// Hint is CategoryRaw or CategoryAuto.
		Hint container.Category
	}
	StoredBlob struct {
		Key      string
		URL      string
		Category container.Category
		MimeType string
	}
)

// BlobStore is the remote object storage. Delete must report BlobNotFound
// (with a nil error) for objects that do not exist.
type BlobStore interface {
	Put(ctx context.Context, in BlobUpload) (StoredBlob, error)
	Delete(ctx context.Context, key string, category container.Category) (BlobOutcome, error)
	// DownloadURL must not outlive validUntil.
	DownloadURL(ctx context.Context, key string, category container.Category, fileName string, validUntil time.Time) (string, error)
}
