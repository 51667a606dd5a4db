package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openpodcast.dev/forwarder/internal/config"
)

func TestLimitHosts(t *testing.T) {
	loadConfig(t)
	limits := NewLimitPerServer()

	ctx := t.Context()
	require.NoError(t, limits.Acquire(ctx, "example.com"))
	require.NoError(t, limits.Acquire(ctx, "example.com"))
	require.NoError(t, limits.Acquire(ctx, "example.org"))
	assert.Equal(t, 2, limits.len())

	limits.Release("example.com")
	assert.Equal(t, 2, limits.len())
	limits.Release("example.com")
	assert.Equal(t, 1, limits.len())
	limits.Release("example.org")
	assert.Zero(t, limits.len())
}

func TestLimitHosts_Acquire_canceled(t *testing.T) {
	loadConfig(t)
	t.Setenv("CONNECTIONS_PER_SERVER", "1")
	require.NoError(t, config.Load(""))
	limits := NewLimitPerServer()

	require.NoError(t, limits.Acquire(t.Context(), "example.com"))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, limits.Acquire(ctx, "example.com"),
		context.DeadlineExceeded)
	assert.Equal(t, 1, limits.len())

	limits.Release("example.com")
	assert.Zero(t, limits.len())
}

func TestNewLimiter(t *testing.T) {
	tests := []struct {
		perSecond float64
		burst     int
		inf       bool
	}{
		{perSecond: 0, burst: 1, inf: true},
		{perSecond: 0.5, burst: 1},
		{perSecond: 1, burst: 1},
		{perSecond: 2.5, burst: 3},
		{perSecond: 10, burst: 10},
	}

	for _, tt := range tests {
		l := newLimiter(tt.perSecond)
		assert.Equal(t, tt.burst, l.Burst())
		if tt.inf {
			assert.True(t, l.Limit() > 1e300)
		} else {
			assert.InDelta(t, tt.perSecond, float64(l.Limit()), 1e-9)
		}
	}
}

func TestRateHosts_Wait(t *testing.T) {
	loadConfig(t)
	t.Setenv("RATE_LIMIT_PER_SERVER", "1")
	require.NoError(t, config.Load(""))
	limits := NewRatePerServer()

	require.NoError(t, limits.Wait(t.Context(), "example.com"))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	err := limits.Wait(ctx, "example.com")
	var tooMany *ErrTooManyRequests
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, "example.com", tooMany.Hostname())
	assert.True(t, tooMany.RetryAfter().After(time.Now()))

	// another host has its own bucket
	require.NoError(t, limits.Wait(ctx, "example.org"))
}

func TestRateHosts_hostLimits(t *testing.T) {
	loadConfig(t)
	yamlName := filepath.Join(t.TempDir(), "forwarder.yaml")
	require.NoError(t, os.WriteFile(yamlName, []byte(`
host_limits:
  slow.example.com:
    rate: 0.001
`), 0o600))
	require.NoError(t, config.LoadYAML(yamlName, ""))

	limits := NewRatePerServer()
	assert.InDelta(t, 0.001, float64(limits.limiter("a.slow.example.com").Limit()),
		1e-9)
	assert.InDelta(t, config.Opts.RateLimitPerServer(),
		float64(limits.limiter("example.com").Limit()), 1e-9)
}

func TestNewResponseSemaphore(t *testing.T) {
	loadConfig(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	resp, err := NewResponseSemaphore(t.Context(), NewRequestBuilder(),
		server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	b, err := resp.ReadBody()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	resp.Close()
	resp.Close()
}
