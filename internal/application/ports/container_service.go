package ports

import (
	"context"
	"io"

	"dropshare-api/internal/domain/container"
)

type (
	// UploadFile is one incoming file; Open is called once by the uploader.
	UploadFile struct {
		Name string
		Size int64
		Open func() (io.ReadCloser, error)
	}
	CreateContainerRequest struct {
		DisplayName     string
		DurationMinutes int
		Files           []UploadFile
	}
	BlobResult struct {
		StorageKey string
		Category   container.Category
		Outcome    BlobOutcome
		Err        error
	}
	ReclaimReport struct {
		PublicID        container.PublicID
		Blobs           []BlobResult
		MetadataDeleted bool
	}
)

func (r ReclaimReport) Count(o BlobOutcome) int {
	n := 0
	for _, b := range r.Blobs {
		if b.Outcome == o {
			n++
		}
	}
	return n
}

type ContainerService interface {
	CreateContainer(ctx context.Context, req CreateContainerRequest) (*container.Container, error)
	ReclaimContainer(ctx context.Context, c *container.Container) (ReclaimReport, error)
}
