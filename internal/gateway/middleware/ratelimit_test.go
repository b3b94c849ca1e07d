package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/ratelimit"
)

func newTestKV(t *testing.T) *kv.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return kv.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
}

func TestRateLimitMiddlewareSkipsSessionAuthenticatedRequests(t *testing.T) {
	limiter := ratelimit.New(newTestKV(t))
	mw := NewRateLimitMiddleware(logging.New("test", "error", "json"), limiter)

	called := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(withAuthResult(context.Background(), &AuthResult{AccountID: "acct-1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareRejectsOverBudgetProjectRequests(t *testing.T) {
	limiter := ratelimit.New(newTestKV(t))
	mw := NewRateLimitMiddleware(logging.New("test", "error", "json"), limiter)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	auth := &AuthResult{AccountID: "acct-1", ProjectID: "proj-1", RateLimitPerMin: 1, RateLimitPerHour: 100}

	req1 := httptest.NewRequest(http.MethodPost, "/", nil)
	req1 = req1.WithContext(withAuthResult(context.Background(), auth))
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/", nil)
	req2 = req2.WithContext(withAuthResult(context.Background(), auth))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)
	require.NotEmpty(t, rec2.Header().Get("Retry-After"))
}
