package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	now := time.Now()

	remaining, _, allowed := rl.allow("1.2.3.4", now)
	require.True(t, allowed)
	assert.Equal(t, 1, remaining)

	_, _, allowed = rl.allow("1.2.3.4", now)
	require.True(t, allowed)

	_, resetAt, allowed := rl.allow("1.2.3.4", now)
	assert.False(t, allowed, "third request in window is rejected")

	// Other clients have their own window.
	_, _, allowed = rl.allow("5.6.7.8", now)
	assert.True(t, allowed)

	// A fresh window opens after reset.
	_, _, allowed = rl.allow("1.2.3.4", resetAt.Add(time.Second))
	assert.True(t, allowed)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()

	rl.allow("1.2.3.4", now)
	rl.allow("5.6.7.8", now)
	require.Len(t, rl.clients, 2)

	rl.cleanup(now.Add(2 * time.Minute))
	assert.Empty(t, rl.clients)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(RateLimitConfig{Max: 1, Window: time.Minute}),
	)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
