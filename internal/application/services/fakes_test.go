package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/domain/container"
	"dropshare-api/internal/infrastructure/mq"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(t time.Time) *manualClock { return &manualClock{now: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type deleteCall struct {
	Key      string
	Category container.Category
}

// FakeBlobStore keeps objects in memory keyed by category and key.
type FakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int

	PutFunc         func(ctx context.Context, in ports.BlobUpload) (ports.StoredBlob, error)
	DeleteFunc      func(ctx context.Context, key string, category container.Category) (ports.BlobOutcome, error)
	DownloadURLFunc func(ctx context.Context, key string, category container.Category, fileName string, validUntil time.Time) (string, error)

	Puts    []ports.BlobUpload
	Deletes []deleteCall
}

func newFakeBlobStore() *FakeBlobStore {
	return &FakeBlobStore{objects: map[string][]byte{}}
}

func objectPath(category container.Category, key string) string {
	return string(category) + "/" + key
}

func (f *FakeBlobStore) Put(ctx context.Context, in ports.BlobUpload) (ports.StoredBlob, error) {
	f.mu.Lock()
	f.Puts = append(f.Puts, in)
	f.mu.Unlock()

	if f.PutFunc != nil {
		return f.PutFunc(ctx, in)
	}
	return f.store(in)
}

func (f *FakeBlobStore) store(in ports.BlobUpload) (ports.StoredBlob, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return ports.StoredBlob{}, err
	}
	cat := in.Hint
	if cat == container.CategoryAuto {
		cat = container.CategoryRaw
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	key := fmt.Sprintf("k%d/%s", f.seq, in.Name)
	f.objects[objectPath(cat, key)] = body
	return ports.StoredBlob{
		Key:      key,
		URL:      "https://blobs.example/" + objectPath(cat, key),
		Category: cat,
		MimeType: "application/octet-stream",
	}, nil
}

func (f *FakeBlobStore) Delete(ctx context.Context, key string, category container.Category) (ports.BlobOutcome, error) {
	f.mu.Lock()
	f.Deletes = append(f.Deletes, deleteCall{Key: key, Category: category})
	f.mu.Unlock()

	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, key, category)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p := objectPath(category, key)
	if _, ok := f.objects[p]; !ok {
		return ports.BlobNotFound, nil
	}
	delete(f.objects, p)
	return ports.BlobDeleted, nil
}

func (f *FakeBlobStore) DownloadURL(ctx context.Context, key string, category container.Category, fileName string, validUntil time.Time) (string, error) {
	if f.DownloadURLFunc != nil {
		return f.DownloadURLFunc(ctx, key, category, fileName, validUntil)
	}
	return "https://blobs.example/" + objectPath(category, key) + "?filename=" + fileName, nil
}

func (f *FakeBlobStore) ObjectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *FakeBlobStore) DeleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Deletes)
}

// memRepository is an in-memory container.Repository. The *Err fields
// force failures.
type memRepository struct {
	mu     sync.Mutex
	nextID container.ID
	rows   map[container.ID]*container.Container

	CreateErr  error
	FetchErr   error
	ExpiredErr error
	DeleteErr  error

	Creates int
	Deletes int
}

func newMemRepository() *memRepository {
	return &memRepository{rows: map[container.ID]*container.Container{}}
}

func (r *memRepository) CreateContainer(_ context.Context, c *container.Container) (*container.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Creates++
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	r.nextID++
	cp := *c
	cp.ID = r.nextID
	r.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepository) FetchByPublicID(_ context.Context, publicID container.PublicID) (*container.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FetchErr != nil {
		return nil, r.FetchErr
	}
	for _, c := range r.rows {
		if c.PublicID == publicID {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memRepository) FetchByFileID(_ context.Context, fileID uuid.UUID) (*container.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FetchErr != nil {
		return nil, r.FetchErr
	}
	for _, c := range r.rows {
		for _, f := range c.Files {
			if f.ID == fileID {
				out := *c
				return &out, nil
			}
		}
	}
	return nil, nil
}

func (r *memRepository) FetchExpired(_ context.Context, before time.Time, limit int) (container.Containers, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ExpiredErr != nil {
		return nil, r.ExpiredErr
	}
	var out container.Containers
	for _, c := range r.rows {
		if c.ExpiresAt.Before(before) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepository) DeleteContainer(_ context.Context, id container.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return false, r.DeleteErr
	}
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	r.Deletes++
	return true, nil
}

func (r *memRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// put inserts a container as is, keeping its timestamps.
func (r *memRepository) put(c *container.Container) *container.Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *c
	cp.ID = r.nextID
	r.rows[cp.ID] = &cp
	out := cp
	return &out
}

type FakeContainerService struct {
	CreateContainerFunc  func(ctx context.Context, req ports.CreateContainerRequest) (*container.Container, error)
	ReclaimContainerFunc func(ctx context.Context, c *container.Container) (ports.ReclaimReport, error)
}

func (f *FakeContainerService) CreateContainer(ctx context.Context, req ports.CreateContainerRequest) (*container.Container, error) {
	if f.CreateContainerFunc == nil {
		return nil, errors.New("not used")
	}
	return f.CreateContainerFunc(ctx, req)
}

func (f *FakeContainerService) ReclaimContainer(ctx context.Context, c *container.Container) (ports.ReclaimReport, error) {
	if f.ReclaimContainerFunc == nil {
		return ports.ReclaimReport{}, errors.New("not used")
	}
	return f.ReclaimContainerFunc(ctx, c)
}

type FakeSweepLock struct {
	AcquireFunc func(ctx context.Context, ttl time.Duration) (func(), bool, error)
}

func (f *FakeSweepLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	return f.AcquireFunc(ctx, ttl)
}

type fakePublisher struct {
	ch chan mq.Event
}

func newFakePublisher(size int) *fakePublisher {
	return &fakePublisher{ch: make(chan mq.Event, size)}
}

func (p *fakePublisher) GetInputChan() chan mq.Event { return p.ch }

func memFile(name string, body string) ports.UploadFile {
	return ports.UploadFile{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(body))), nil
		},
	}
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_total"}, []string{"result"})
}
