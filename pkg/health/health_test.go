package health

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	h := New()
	assert.False(t, h.IsReady(), "starts not ready")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestFailureThreshold(t *testing.T) {
	h := New()
	h.AddReadinessCheck("flaky", time.Second, func(context.Context) error {
		return errors.New("down")
	})
	h.SetReady(true)

	c := h.readiness[0]

	// One failure is not enough to flip the check.
	c.poll(context.Background())
	assert.True(t, h.IsReady())

	c.poll(context.Background())
	c.poll(context.Background())
	assert.False(t, h.IsReady(), "unhealthy after %d consecutive failures", failureThreshold)

	// A single success recovers.
	c.fn = func(context.Context) error { return nil }
	c.poll(context.Background())
	assert.True(t, h.IsReady())
}

func TestEndpoints(t *testing.T) {
	h := New()
	h.SetReady(true)

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest("GET", "/livez", nil))
	require.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 503, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}
