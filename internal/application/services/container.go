package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/domain/container"
	"dropshare-api/internal/infrastructure/mq"
)

const defaultUploadConcurrency = 4

var errNoStorageKey = errors.New("blob store returned an empty storage key")

type ContainerService struct {
	blobs       ports.BlobStore
	repo        container.Repository
	events      ports.EventPublisher
	clock       ports.Clock
	logger      *zap.Logger
	mCounter    *prometheus.CounterVec
	concurrency int
}

// NewContainerService wires the lifecycle manager. events may be nil.
func NewContainerService(
	blobs ports.BlobStore,
	repo container.Repository,
	events ports.EventPublisher,
	clock ports.Clock,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
	concurrency int,
) ports.ContainerService {
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}
	return &ContainerService{
		blobs:       blobs,
		repo:        repo,
		events:      events,
		clock:       clock,
		logger:      logger,
		mCounter:    mCounter,
		concurrency: concurrency,
	}
}

func validateCreate(req ports.CreateContainerRequest) error {
	if len(req.Files) == 0 {
		return container.NewValidationError("files", "at least one file is required")
	}
	if req.DurationMinutes <= 0 {
		return container.NewValidationError("expiryDuration", "expiry duration must be a positive number of minutes")
	}
	if req.DurationMinutes > container.MaxDurationMinutes {
		return container.NewValidationError("expiryDuration", fmt.Sprintf("expiry duration must not exceed %d minutes", container.MaxDurationMinutes))
	}
	return nil
}

// CreateContainer stages every file in the blob store and persists the
// container only after all uploads are confirmed. On any failure the blobs
// already staged are removed and nothing is written to the repository.
func (cs *ContainerService) CreateContainer(
	ctx context.Context,
	req ports.CreateContainerRequest,
) (*container.Container, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	staged := make([]*ports.StoredBlob, len(req.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cs.concurrency)
	for i, f := range req.Files {
		g.Go(func() error {
			blob, err := cs.stage(gctx, f)
			if err != nil {
				return &container.UploadError{File: f.Name, Err: err}
			}
			staged[i] = &blob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cs.mCounter.WithLabelValues("upload_failures_total").Inc()
		cs.logger.Warn("container upload failed, discarding staged blobs", zap.Error(err), zap.Int("files", len(req.Files)))
		cs.discard(ctx, staged)
		return nil, err
	}

	now := cs.clock.Now().UTC()
	c := &container.Container{
		PublicID:    uuid.New(),
		DisplayName: cleanDisplayName(req.DisplayName),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(req.DurationMinutes) * time.Minute),
		Files:       make([]container.FileRecord, 0, len(req.Files)),
	}
	for i, f := range req.Files {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = "file"
		}
		base, ext := splitCleanName(name)
		c.Files = append(c.Files, container.FileRecord{
			ID:           uuid.New(),
			Position:     i,
			OriginalName: name,
			CleanName:    &base,
			Extension:    &ext,
			StorageKey:   staged[i].Key,
			URL:          staged[i].URL,
			SizeBytes:    f.Size,
			Category:     staged[i].Category,
			MimeType:     staged[i].MimeType,
		})
	}

	out, err := cs.repo.CreateContainer(ctx, c)
	if err != nil {
		cs.logger.Error("persist container failed, discarding staged blobs", zap.Error(err), zap.String("public_id", c.PublicID.String()))
		cs.discard(ctx, staged)
		return nil, fmt.Errorf("persist container: %w", err)
	}

	cs.mCounter.WithLabelValues("containers_created_total").Inc()
	cs.logger.Info("container created",
		zap.String("public_id", out.PublicID.String()),
		zap.Int("files", len(out.Files)),
		zap.Time("expires_at", out.ExpiresAt),
	)
	cs.publish(mq.EventContainerCreated, out, nil)

	return out, nil
}

func (cs *ContainerService) stage(ctx context.Context, f ports.UploadFile) (ports.StoredBlob, error) {
	if err := ctx.Err(); err != nil {
		return ports.StoredBlob{}, err
	}

	rc, err := f.Open()
	if err != nil {
		return ports.StoredBlob{}, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	blob, err := cs.blobs.Put(ctx, ports.BlobUpload{
		Name: sanitizeFileName(f.Name),
		Size: f.Size,
		Body: rc,
		Hint: categoryHint(f.Name),
	})
	if err != nil {
		return ports.StoredBlob{}, err
	}
	if blob.Key == "" {
		return ports.StoredBlob{}, errNoStorageKey
	}

	return blob, nil
}

// discard removes blobs staged by a failed creation. It outlives a cancelled
// request context.
func (cs *ContainerService) discard(ctx context.Context, staged []*ports.StoredBlob) {
	ctx = context.WithoutCancel(ctx)
	for _, b := range staged {
		if b == nil {
			continue
		}
		out, err := cs.blobs.Delete(ctx, b.Key, b.Category)
		if out == ports.BlobFailed || err != nil {
			cs.logger.Warn("discard staged blob failed",
				zap.String("storage_key", b.Key),
				zap.String("category", string(b.Category)),
				zap.Error(err),
			)
		}
	}
}

// ReclaimContainer deletes every blob of c and then its metadata record.
// Blob failures are reported in the returned ReclaimReport and never stop
// the metadata delete. Only a metadata failure yields a *ReclaimError.
func (cs *ContainerService) ReclaimContainer(
	ctx context.Context,
	c *container.Container,
) (ports.ReclaimReport, error) {
	report := ports.ReclaimReport{
		PublicID: c.PublicID,
		Blobs:    make([]ports.BlobResult, 0, len(c.Files)),
	}

	for _, f := range c.Files {
		if !f.Downloadable() {
			cs.logger.Debug("file record without storage key, nothing to delete",
				zap.String("public_id", c.PublicID.String()),
				zap.String("file_id", f.ID.String()),
			)
			continue
		}

		res := cs.deleteBlob(ctx, f)
		if res.Outcome == ports.BlobFailed {
			cs.logger.Warn("blob delete failed, leaking object",
				zap.String("public_id", c.PublicID.String()),
				zap.String("storage_key", res.StorageKey),
				zap.String("category", string(res.Category)),
				zap.Error(res.Err),
			)
		}
		report.Blobs = append(report.Blobs, res)
	}

	deleted, err := cs.repo.DeleteContainer(ctx, c.ID)
	if err != nil {
		cs.mCounter.WithLabelValues("reclaim_failures_total").Inc()
		return report, &container.ReclaimError{PublicID: c.PublicID, Err: err}
	}
	report.MetadataDeleted = deleted

	nDeleted := report.Count(ports.BlobDeleted)
	nNotFound := report.Count(ports.BlobNotFound)
	nFailed := report.Count(ports.BlobFailed)

	cs.mCounter.WithLabelValues("blobs_deleted_total").Add(float64(nDeleted))
	cs.mCounter.WithLabelValues("blobs_not_found_total").Add(float64(nNotFound))
	cs.mCounter.WithLabelValues("blobs_failed_total").Add(float64(nFailed))

	cs.logger.Info("container reclaimed",
		zap.String("public_id", c.PublicID.String()),
		zap.Int("deleted", nDeleted),
		zap.Int("not_found", nNotFound),
		zap.Int("failed", nFailed),
		zap.Bool("metadata_deleted", deleted),
	)

	if deleted {
		cs.mCounter.WithLabelValues("containers_reclaimed_total").Inc()
		cs.publish(mq.EventContainerReclaimed, c, &report)
	}

	return report, nil
}

// deleteBlob targets the recorded category. Records without one are tried
// under every known category, where "not found" is the expected answer for
// all but at most one of them.
func (cs *ContainerService) deleteBlob(ctx context.Context, f container.FileRecord) ports.BlobResult {
	if f.HasKnownCategory() {
		out, err := cs.blobs.Delete(ctx, f.StorageKey, f.Category)
		if err != nil {
			out = ports.BlobFailed
		}
		return ports.BlobResult{StorageKey: f.StorageKey, Category: f.Category, Outcome: out, Err: err}
	}

	res := ports.BlobResult{StorageKey: f.StorageKey, Category: container.CategoryUnknown, Outcome: ports.BlobNotFound}
	var errs []error
	for _, cat := range container.KnownCategories {
		out, err := cs.blobs.Delete(ctx, f.StorageKey, cat)
		switch {
		case err != nil || out == ports.BlobFailed:
			if err == nil {
				err = fmt.Errorf("delete under %s failed", cat)
			}
			errs = append(errs, fmt.Errorf("%s: %w", cat, err))
		case out == ports.BlobDeleted:
			res.Category = cat
			if res.Outcome != ports.BlobFailed {
				res.Outcome = ports.BlobDeleted
			}
		}
	}
	if len(errs) > 0 {
		res.Outcome = ports.BlobFailed
		res.Err = errors.Join(errs...)
	}

	return res
}

func (cs *ContainerService) publish(eventType string, c *container.Container, report *ports.ReclaimReport) {
	if cs.events == nil {
		return
	}

	payload := mq.ContainerPayload{
		DisplayName: c.DisplayName,
		FileCount:   len(c.Files),
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
	}
	for _, f := range c.Files {
		payload.TotalBytes += f.SizeBytes
	}
	if report != nil {
		payload.BlobsDeleted = report.Count(ports.BlobDeleted)
		payload.BlobsNotFound = report.Count(ports.BlobNotFound)
		payload.BlobsFailed = report.Count(ports.BlobFailed)
	}

	e := mq.Event{
		Id:       uuid.New(),
		TS:       cs.clock.Now().UTC(),
		Type:     eventType,
		PublicID: c.PublicID.String(),
		Payload:  payload,
	}

	select {
	case cs.events.GetInputChan() <- e:
	default:
		cs.mCounter.WithLabelValues("events_dropped_total").Inc()
		cs.logger.Warn("event buffer full, dropping event", zap.String("event_type", eventType), zap.String("public_id", e.PublicID))
	}
}
