package services

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/domain/container"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 100
)

type SweeperService struct {
	repo      container.Repository
	lifecycle ports.ContainerService
	lock      ports.SweepLock
	clock     ports.Clock
	interval  time.Duration
	batch     int
	logger    *zap.Logger
	mCounter  *prometheus.CounterVec
	mDuration prometheus.Observer

	// one run at a time within the process
	mu sync.Mutex
}

// NewSweeper builds the expiry sweeper. lock may be nil.
func NewSweeper(
	repo container.Repository,
	lifecycle ports.ContainerService,
	lock ports.SweepLock,
	clock ports.Clock,
	interval time.Duration,
	batch int,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
	mDuration prometheus.Observer,
) ports.Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &SweeperService{
		repo:      repo,
		lifecycle: lifecycle,
		lock:      lock,
		clock:     clock,
		interval:  interval,
		batch:     batch,
		logger:    logger.With(zap.String("component", "sweeper")),
		mCounter:  mCounter,
		mDuration: mDuration,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *SweeperService) Run(ctx context.Context) {
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	defer s.logger.Info("sweeper stopped")

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce reclaims the containers that were expired at the start of the
// run. A failing container is counted and skipped.
func (s *SweeperService) RunOnce(ctx context.Context) ports.SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var res ports.SweepResult

	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, s.leaseTTL())
		if err != nil {
			s.logger.Warn("sweep lease unavailable, sweeping without it", zap.Error(err))
		} else if !ok {
			s.logger.Debug("sweep lease held elsewhere, skipping run")
			res.Skipped = true
			s.mCounter.WithLabelValues("sweeps_skipped_total").Inc()
			return res
		} else {
			defer release()
		}
	}

	now := s.clock.Now().UTC()
	expired, err := s.repo.FetchExpired(ctx, now, s.batch)
	if err != nil {
		s.logger.Error("fetch expired containers failed", zap.Error(err))
		s.mCounter.WithLabelValues("sweep_errors_total").Inc()
		res.Duration = time.Since(start)
		return res
	}
	res.Found = len(expired)

	for _, c := range expired {
		if ctx.Err() != nil {
			break
		}

		report, err := s.lifecycle.ReclaimContainer(ctx, c)
		res.BlobsDeleted += report.Count(ports.BlobDeleted)
		res.BlobsNotFound += report.Count(ports.BlobNotFound)
		res.BlobsFailed += report.Count(ports.BlobFailed)
		if err != nil {
			res.Failed++
			s.logger.Error("reclaim failed", zap.String("public_id", c.PublicID.String()), zap.Error(err))
			continue
		}
		res.Reclaimed++
	}

	res.Duration = time.Since(start)

	s.mCounter.WithLabelValues("sweeps_total").Inc()
	if s.mDuration != nil {
		s.mDuration.Observe(res.Duration.Seconds())
	}

	if res.Found > 0 || res.Failed > 0 {
		s.logger.Info("sweep finished",
			zap.Int("found", res.Found),
			zap.Int("reclaimed", res.Reclaimed),
			zap.Int("failed", res.Failed),
			zap.Int("blobs_deleted", res.BlobsDeleted),
			zap.Int("blobs_not_found", res.BlobsNotFound),
			zap.Int("blobs_failed", res.BlobsFailed),
			zap.Duration("duration", res.Duration),
		)
	} else {
		s.logger.Debug("sweep finished, nothing expired", zap.Duration("duration", res.Duration))
	}

	return res
}

// leaseTTL expires just before the next tick.
func (s *SweeperService) leaseTTL() time.Duration {
	ttl := s.interval - time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
