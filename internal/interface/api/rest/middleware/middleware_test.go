package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dropshare-api/internal/infrastructure/jwt"
)

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counters"}, []string{"result"})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := jwt.New("test-secret")

	operatorTok, err := j.GenerateJWT("ops@example.com", jwt.RoleOperator, time.Minute)
	require.NoError(t, err)
	viewerTok, err := j.GenerateJWT("viewer@example.com", "viewer", time.Minute)
	require.NoError(t, err)
	foreignTok, err := jwt.New("other-secret").GenerateJWT("ops@example.com", jwt.RoleOperator, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized, wantErr: "missing Authorization header"},
		{name: "no bearer prefix", header: operatorTok, wantCode: http.StatusUnauthorized, wantErr: "invalid token format"},
		{name: "empty bearer", header: "Bearer ", wantCode: http.StatusUnauthorized, wantErr: "invalid token format"},
		{name: "garbage", header: "Bearer abc.def.ghi", wantCode: http.StatusUnauthorized, wantErr: "invalid token"},
		{name: "foreign secret", header: "Bearer " + foreignTok, wantCode: http.StatusUnauthorized, wantErr: "invalid token"},
		{name: "wrong role", header: "Bearer " + viewerTok, wantCode: http.StatusForbidden, wantErr: "forbidden"},
		{name: "operator", header: "Bearer " + operatorTok, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", AuthMiddleware(j), RequireRole(jwt.RoleOperator), func(c *gin.Context) {
				c.String(http.StatusOK, c.GetString(CtxOperatorEmail))
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantErr != "" {
				assert.JSONEq(t, `{"error":"`+tt.wantErr+`"}`, rr.Body.String())
				return
			}
			assert.Equal(t, "ops@example.com", rr.Body.String())
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rl := NewRateLimiter(4) // burst 2, one token per 15s
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("192.0.2.1"))
	assert.True(t, rl.Allow("192.0.2.1"))
	assert.False(t, rl.Allow("192.0.2.1"))
	assert.True(t, rl.Allow("192.0.2.2"), "other clients have their own bucket")

	now = now.Add(15 * time.Second)
	assert.True(t, rl.Allow("192.0.2.1"))
	assert.False(t, rl.Allow("192.0.2.1"))

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, rl.Allow("192.0.2.3"))
	assert.Len(t, rl.limiters, 1, "idle buckets are dropped")
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mCounter := newCounter()
	rl := NewRateLimiter(1)

	r := gin.New()
	r.POST("/upload", rl.Middleware(mCounter), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2.0, testutil.ToFloat64(mCounter.WithLabelValues("rate_limited_total")))
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mCounter := newCounter()
	rl := NewRateLimiter(1)

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.POST("/upload", rl.Middleware(mCounter), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{
		http.StatusOK,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}

func TestRequestLogGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		wantLogged  bool
		wantBody    string
	}{
		{name: "json body logged and preserved", method: http.MethodPost, path: "/api/v1/echo", contentType: "application/json", body: `{"a":1}`, wantLogged: true, wantBody: `{"a":1}`},
		{name: "login omitted", method: http.MethodPost, path: "/api/v1/auth/login", contentType: "application/json", body: `{"password":"x"}`, wantLogged: true, wantBody: "<credentials omitted>"},
		{name: "multipart omitted", method: http.MethodPost, path: "/api/v1/echo", contentType: "multipart/form-data; boundary=x", body: "--x--", wantLogged: true, wantBody: "<multipart/form-data omitted>"},
		{name: "get has no body", method: http.MethodGet, path: "/api/v1/echo", wantLogged: true, wantBody: ""},
		{name: "health skipped", method: http.MethodGet, path: "/api/v1/healthz", wantLogged: false},
		{name: "metrics skipped", method: http.MethodGet, path: "/api/v1/metrics", wantLogged: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			mCounter := newCounter()

			var seen string
			r := gin.New()
			r.Use(RequestLogGin(zap.New(core), mCounter))
			r.Any("/*path", func(c *gin.Context) {
				b, _ := io.ReadAll(c.Request.Body)
				seen = string(b)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.body, seen, "handler must still see the full body")

			if !tt.wantLogged {
				assert.Zero(t, logs.Len())
				assert.Zero(t, testutil.ToFloat64(mCounter.WithLabelValues("app_requests_total")))
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, "HTTP request", entry.Message)
			assert.Equal(t, tt.wantBody, entry.ContextMap()["body"])
			assert.Equal(t, int64(http.StatusOK), entry.ContextMap()["status"])
			assert.Equal(t, 1.0, testutil.ToFloat64(mCounter.WithLabelValues("app_requests_total")))
		})
	}
}

func TestRequestLogGin_ServerErrorsWarn(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(RequestLogGin(zap.New(core), nil))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.True(t, strings.HasPrefix(logs.All()[0].ContextMap()["route"].(string), "/boom"))
}
