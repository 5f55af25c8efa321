package container

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the metadata store. Fetch methods return (nil, nil) when
// nothing matches. DeleteContainer is idempotent and reports whether a row
// was actually removed.
type Repository interface {
	CreateContainer(ctx context.Context, req *Container) (*Container, error)
	FetchByPublicID(ctx context.Context, publicID PublicID) (*Container, error)
	FetchByFileID(ctx context.Context, fileID uuid.UUID) (*Container, error)
	FetchExpired(ctx context.Context, before time.Time, limit int) (Containers, error)
	DeleteContainer(ctx context.Context, id ID) (bool, error)
}
