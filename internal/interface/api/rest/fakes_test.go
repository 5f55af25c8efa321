package rest

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/domain/container"
)

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

type FakeRetrievalService struct {
	ResolveFunc           func(ctx context.Context, publicID container.PublicID) (*ports.ContainerView, error)
	ResolveSingleFileFunc func(ctx context.Context, fileID uuid.UUID) (string, error)
}

func (f *FakeRetrievalService) Resolve(ctx context.Context, publicID container.PublicID) (*ports.ContainerView, error) {
	if f.ResolveFunc == nil {
		return nil, errors.New("not used")
	}
	return f.ResolveFunc(ctx, publicID)
}

func (f *FakeRetrievalService) ResolveSingleFile(ctx context.Context, fileID uuid.UUID) (string, error) {
	if f.ResolveSingleFileFunc == nil {
		return "", errors.New("not used")
	}
	return f.ResolveSingleFileFunc(ctx, fileID)
}

type FakeSweeper struct {
	RunOnceFunc func(ctx context.Context) ports.SweepResult
	calls       int
}

func (f *FakeSweeper) RunOnce(ctx context.Context) ports.SweepResult {
	f.calls++
	if f.RunOnceFunc == nil {
		return ports.SweepResult{}
	}
	return f.RunOnceFunc(ctx)
}

func (f *FakeSweeper) Run(ctx context.Context) { <-ctx.Done() }

type fakeAuthService struct {
	GenerateTokenFunc func(email, password string) (string, error)
}

func (f *fakeAuthService) GenerateToken(email, password string) (string, error) {
	return f.GenerateTokenFunc(email, password)
}

type formFile struct {
	field string
	name  string
	body  string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}
