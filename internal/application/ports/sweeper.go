package ports

import (
	"context"
	"time"
)

type SweepResult struct {
	Skipped       bool          `json:"skipped"`
	Found         int           `json:"found"`
	Reclaimed     int           `json:"reclaimed"`
	Failed        int           `json:"failed"`
	BlobsDeleted  int           `json:"blobs_deleted"`
	BlobsNotFound int           `json:"blobs_not_found"`
	BlobsFailed   int           `json:"blobs_failed"`
	Duration      time.Duration `json:"duration_ns"`
}

type Sweeper interface {
	RunOnce(ctx context.Context) SweepResult
	Run(ctx context.Context)
}

// SweepLock is an optional cross-instance lease around one sweep run.
type SweepLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}
