package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"dropshare-api/internal/domain/container"
)

// ContainerRepository is a read-through cache over FetchByPublicID.
// Entries are dropped when the container is deleted through it; other
// instances rely on the TTL. Callers still check expiry on what they get.
type ContainerRepository struct {
	next     container.Repository
	byPublic *expirable.LRU[container.PublicID, *container.Container]
	byID     *expirable.LRU[container.ID, container.PublicID]
	mCounter *prometheus.CounterVec
}

func NewContainerRepository(
	next container.Repository,
	size int,
	ttl time.Duration,
	mCounter *prometheus.CounterVec,
) container.Repository {
	return &ContainerRepository{
		next:     next,
		byPublic: expirable.NewLRU[container.PublicID, *container.Container](size, nil, ttl),
		byID:     expirable.NewLRU[container.ID, container.PublicID](size, nil, ttl),
		mCounter: mCounter,
	}
}

func (r *ContainerRepository) CreateContainer(ctx context.Context, req *container.Container) (*container.Container, error) {
	return r.next.CreateContainer(ctx, req)
}

func (r *ContainerRepository) FetchByPublicID(ctx context.Context, publicID container.PublicID) (*container.Container, error) {
	if c, ok := r.byPublic.Get(publicID); ok {
		r.mCounter.WithLabelValues("hit").Inc()
		out := *c
		return &out, nil
	}
	r.mCounter.WithLabelValues("miss").Inc()

	c, err := r.next.FetchByPublicID(ctx, publicID)
	if err != nil || c == nil {
		return c, err
	}

	stored := *c
	r.byPublic.Add(publicID, &stored)
	r.byID.Add(c.ID, publicID)

	return c, nil
}

func (r *ContainerRepository) FetchByFileID(ctx context.Context, fileID uuid.UUID) (*container.Container, error) {
	return r.next.FetchByFileID(ctx, fileID)
}

func (r *ContainerRepository) FetchExpired(ctx context.Context, before time.Time, limit int) (container.Containers, error) {
	return r.next.FetchExpired(ctx, before, limit)
}

func (r *ContainerRepository) DeleteContainer(ctx context.Context, id container.ID) (bool, error) {
	deleted, err := r.next.DeleteContainer(ctx, id)
	if pid, ok := r.byID.Peek(id); ok {
		r.byPublic.Remove(pid)
		r.byID.Remove(id)
	}
	return deleted, err
}
