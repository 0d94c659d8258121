package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	require.NoError(t, err)
	return limiter, mr
}

func TestFixedWindowLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		ok, err := limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "ip-2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own budget")
}

func TestFixedWindowLimiter_NextWindowResets(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow(ctx, "ip")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "ip")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, err := limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFixedWindowLimiter_SetsExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	_, err := limiter.Allow(context.Background(), "ip")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Minute, mr.TTL(keys[0]))
}

func TestFixedWindowLimiter_FailsClosed(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "ip")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewFixedWindowLimiter_Validation(t *testing.T) {
	_, err := NewFixedWindowLimiter(nil, "", 1, time.Second)
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()
	_, err = NewFixedWindowLimiter(client, "", 0, time.Second)
	assert.Error(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := RateLimit(limiter, "login", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5000").Code)

	blocked := send("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code, "same IP, different port")
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000").Code)
}
