package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/domain/container"
)

type RetrievalService struct {
	blobs    ports.BlobStore
	repo     container.Repository
	clock    ports.Clock
	logger   *zap.Logger
	mCounter *prometheus.CounterVec
}

func NewRetrievalService(
	blobs ports.BlobStore,
	repo container.Repository,
	clock ports.Clock,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
) ports.RetrievalService {
	return &RetrievalService{
		blobs:    blobs,
		repo:     repo,
		clock:    clock,
		logger:   logger,
		mCounter: mCounter,
	}
}

// Resolve returns the downloadable view of a live container. Expiry is
// checked here regardless of whether the sweeper has reclaimed it yet.
func (rs *RetrievalService) Resolve(ctx context.Context, publicID container.PublicID) (*ports.ContainerView, error) {
	c, err := rs.repo.FetchByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, container.ErrNotFound
	}

	now := rs.clock.Now().UTC()
	if c.IsExpired(now) {
		rs.mCounter.WithLabelValues("expired_hits_total").Inc()
		return nil, container.ErrExpired
	}

	view := &ports.ContainerView{
		PublicID:    c.PublicID,
		DisplayName: c.DisplayName,
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
		Files:       make([]ports.FileView, 0, len(c.Files)),
	}
	for _, f := range c.Files {
		fv := ports.FileView{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			DownloadName: downloadName(f, now),
			SizeBytes:    f.SizeBytes,
			Category:     f.Category,
		}
		if !f.Downloadable() {
			fv.Corrupt = true
			view.Files = append(view.Files, fv)
			continue
		}

		u, err := rs.blobs.DownloadURL(ctx, f.StorageKey, f.Category, fv.DownloadName, c.ExpiresAt)
		if err != nil {
			rs.logger.Warn("download url synthesis failed",
				zap.String("public_id", c.PublicID.String()),
				zap.String("file_id", f.ID.String()),
				zap.Error(err),
			)
			fv.Corrupt = true
		}
		fv.DownloadURL = u
		view.Files = append(view.Files, fv)
	}

	return view, nil
}

// ResolveSingleFile returns the redirect target for one file.
func (rs *RetrievalService) ResolveSingleFile(ctx context.Context, fileID uuid.UUID) (string, error) {
	c, err := rs.repo.FetchByFileID(ctx, fileID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", container.ErrNotFound
	}

	now := rs.clock.Now().UTC()
	if c.IsExpired(now) {
		rs.mCounter.WithLabelValues("expired_hits_total").Inc()
		return "", container.ErrExpired
	}

	for _, f := range c.Files {
		if f.ID != fileID {
			continue
		}
		if !f.Downloadable() {
			return "", container.ErrCorruptRecord
		}
		u, err := rs.blobs.DownloadURL(ctx, f.StorageKey, f.Category, downloadName(f, now), c.ExpiresAt)
		if err != nil {
			return "", fmt.Errorf("download url: %w", err)
		}
		rs.mCounter.WithLabelValues("downloads_total").Inc()
		return u, nil
	}

	return "", container.ErrNotFound
}
