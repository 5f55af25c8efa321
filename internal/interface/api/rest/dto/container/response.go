package container

import "time"

type (
	UploadResponse struct {
		Success       bool      `json:"success"`
		ShareLink     string    `json:"shareLink"`
		ContainerName string    `json:"containerName"`
		Expiry        time.Time `json:"expiry"`
	}

	FileResponse struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		DownloadName string `json:"downloadName"`
		DownloadURL  string `json:"downloadUrl,omitempty"`
		Size         int64  `json:"size"`
		Category     string `json:"category,omitempty"`
		Corrupt      bool   `json:"corrupt,omitempty"`
	}

	Response struct {
		PublicID  string         `json:"publicId"`
		Name      string         `json:"name"`
		CreatedAt time.Time      `json:"createdAt"`
		ExpiresAt time.Time      `json:"expiresAt"`
		Files     []FileResponse `json:"files"`
	}
)
