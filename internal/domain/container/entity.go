package container

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDisplayName is used when the uploader leaves the container name blank.
const DefaultDisplayName = "Untitled"

// MaxDurationMinutes caps a container's lifetime at one year.
const MaxDurationMinutes = 365 * 24 * 60

type Category string

const (
	CategoryUnknown Category = ""
	CategoryImage   Category = "image"
	CategoryVideo   Category = "video"
	CategoryRaw     Category = "raw"

	// CategoryAuto is only an upload hint: the blob store picks the category.
	CategoryAuto Category = "auto"
)

// KnownCategories is the deletion search order for records without a category.
var KnownCategories = []Category{CategoryImage, CategoryVideo, CategoryRaw}

type (
	ID       uint64
	PublicID = uuid.UUID

	// FileRecord is one uploaded file. CleanName and Extension were added
	// after the first records were written and may be nil; they are derived
	// from OriginalName when missing.
	FileRecord struct {
		ID           uuid.UUID
		Position     int
		OriginalName string
		CleanName    *string
		Extension    *string
		StorageKey   string
		URL          string
		SizeBytes    int64
		Category     Category
		MimeType     string
	}

	Container struct {
		ID          ID
		PublicID    PublicID
		DisplayName string
		Files       []FileRecord
		CreatedAt   time.Time
		ExpiresAt   time.Time
	}
	Containers []*Container
)

// IsExpired reports logical expiry. It does not depend on reclamation progress.
func (c *Container) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Downloadable reports whether the record carries what retrieval needs.
func (f FileRecord) Downloadable() bool {
	return f.StorageKey != ""
}

func (f FileRecord) HasKnownCategory() bool {
	switch f.Category {
	case CategoryImage, CategoryVideo, CategoryRaw:
		return true
	}
	return false
}
