package container

import (
	domain "dropshare-api/internal/domain/container"
)

func fromDBModel(model *Container, files Files) *domain.Container {
	c := &domain.Container{
		ID:          domain.ID(model.ID),
		PublicID:    model.PublicID,
		DisplayName: model.DisplayName,
		CreatedAt:   model.CreatedAt,
		ExpiresAt:   model.ExpiresAt,
		Files:       make([]domain.FileRecord, 0, len(files)),
	}
	for _, f := range files {
		c.Files = append(c.Files, fromDBFile(f))
	}

	return c
}

func fromDBFile(f *File) domain.FileRecord {
	rec := domain.FileRecord{
		ID:           f.UUID,
		Position:     int(f.Position),
		OriginalName: f.OriginalName,
		CleanName:    f.CleanName,
		Extension:    f.Extension,
		URL:          f.URL,
		SizeBytes:    f.SizeBytes,
		Category:     domain.Category(f.Category),
		MimeType:     f.MimeType,
	}
	if f.StorageKey != nil {
		rec.StorageKey = *f.StorageKey
	}

	return rec
}

func toDBFile(containerID int64, rec domain.FileRecord) *File {
	f := &File{
		ContainerID:  containerID,
		UUID:         rec.ID,
		Position:     int32(rec.Position),
		OriginalName: rec.OriginalName,
		CleanName:    rec.CleanName,
		Extension:    rec.Extension,
		URL:          rec.URL,
		SizeBytes:    rec.SizeBytes,
		Category:     string(rec.Category),
		MimeType:     rec.MimeType,
	}
	if rec.StorageKey != "" {
		key := rec.StorageKey
		f.StorageKey = &key
	}

	return f
}
