package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dropshare-api/internal/domain/container"
)

type (
	FileView struct {
		ID           uuid.UUID
		OriginalName string
		DownloadName string
		DownloadURL  string
		SizeBytes    int64
		Category     container.Category
		Corrupt      bool
	}
	ContainerView struct {
		PublicID    container.PublicID
		DisplayName string
		CreatedAt   time.Time
		ExpiresAt   time.Time
		Files       []FileView
	}
)

type RetrievalService interface {
	Resolve(ctx context.Context, publicID container.PublicID) (*ContainerView, error)
	ResolveSingleFile(ctx context.Context, fileID uuid.UUID) (string, error)
}
