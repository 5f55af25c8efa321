package container

import (
	"time"

	"github.com/google/uuid"
)

type (
	Container struct {
		ID          int64
		PublicID    uuid.UUID
		DisplayName string
		CreatedAt   time.Time
		ExpiresAt   time.Time
	}
	Containers []*Container

	// File columns added in later schema revisions are nullable.
	File struct {
		ContainerID  int64
		UUID         uuid.UUID
		Position     int32
		OriginalName string
		CleanName    *string
		Extension    *string
		StorageKey   *string
		URL          string
		SizeBytes    int64
		Category     string
		MimeType     string
	}
	Files []*File
)
