package container

import (
	"dropshare-api/internal/application/ports"
	domain "dropshare-api/internal/domain/container"
)

func ToUploadResponse(c *domain.Container, shareLink string) UploadResponse {
	return UploadResponse{
		Success:       true,
		ShareLink:     shareLink,
		ContainerName: c.DisplayName,
		Expiry:        c.ExpiresAt,
	}
}

func ToResponse(v *ports.ContainerView) Response {
	out := Response{
		PublicID:  v.PublicID.String(),
		Name:      v.DisplayName,
		CreatedAt: v.CreatedAt,
		ExpiresAt: v.ExpiresAt,
		Files:     make([]FileResponse, 0, len(v.Files)),
	}
	for _, f := range v.Files {
		out.Files = append(out.Files, FileResponse{
			ID:           f.ID.String(),
			Name:         f.OriginalName,
			DownloadName: f.DownloadName,
			DownloadURL:  f.DownloadURL,
			Size:         f.SizeBytes,
			Category:     string(f.Category),
			Corrupt:      f.Corrupt,
		})
	}
	return out
}
