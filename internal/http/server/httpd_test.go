package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openpodcast.dev/forwarder/internal/analytics"
	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/upstream"
	"openpodcast.dev/forwarder/internal/worker"
)

func loadConfig(t *testing.T, upstreamURL string, env ...string) {
	t.Helper()
	os.Clearenv()
	t.Setenv("UPSTREAM_FEED_URL", upstreamURL)
	t.Setenv("WEBSITE_URL", "https://example.org")
	for i := 0; i+1 < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}
	require.NoError(t, config.Load(""))
}

func newHandler(t *testing.T, pool *worker.Pool) http.Handler {
	t.Helper()
	source := upstream.New(config.Opts.UpstreamFeedURL(), 0)
	return setupHandler(source, pool, analytics.NewDispatcher(pool, 0))
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestSetupHandler(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<rss><channel><link>x</link></channel></rss>`))
		}))
	defer feed.Close()

	loadConfig(t, feed.URL, "VERSION", "1.2.3")
	h := newHandler(t, worker.NewPool(t.Context(), 1, 1))

	for _, target := range []string{"/liveness", "/healthz", "/healthcheck"} {
		w := get(h, target)
		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, "OK", w.Body.String(), target)
	}

	w := get(h, "/version")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.2.3", w.Body.String())

	w = get(h, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<rss><channel><link>https://example.org/</link></channel></rss>`,
		w.Body.String())

	w = get(h, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetupHandler_basePath(t *testing.T) {
	loadConfig(t, "https://example.com/feed.xml",
		"BASE_URL", "https://pod.example.com/podcast",
		"METRICS_COLLECTOR", "1")
	h := newHandler(t, worker.NewPool(t.Context(), 1, 1))

	assert.Equal(t, http.StatusOK, get(h, "/liveness").Code)
	assert.Equal(t, http.StatusOK, get(h, "/podcast/healthcheck").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/healthcheck").Code)
	assert.Equal(t, http.StatusOK, get(h, "/podcast/version").Code)

	w := get(h, "/podcast/r/ep1.mp3?ref=https%3A%2F%2Fcdn.example.com%2Fep1.mp3")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://cdn.example.com/ep1.mp3", w.Header().Get("Location"))

	r := httptest.NewRequest(http.MethodGet, "/podcast/metrics", nil)
	r.RemoteAddr = "127.0.0.1:1234"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	feed := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(int(status.Load()))
		}))
	defer feed.Close()

	loadConfig(t, feed.URL)
	pool := worker.NewPool(t.Context(), 1, 1)
	h := newHandler(t, pool)

	w := get(h, "/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "worker pool is not running")

	go func() { _ = pool.Run() }()
	require.Eventually(t, pool.Running, time.Second, time.Millisecond)

	w = get(h, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	status.Store(http.StatusBadGateway)
	w = get(h, "/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Upstream Error")
}

func TestLimitListener(t *testing.T) {
	loadConfig(t, "https://example.com/feed.xml",
		"HTTP_SERVER_MAX_CONNECTIONS", "2")

	l, err := listenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	_, ok := l.(*net.TCPListener)
	assert.False(t, ok, "listener must be wrapped")

	loadConfig(t, "https://example.com/feed.xml")
	l2, err := listenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer l2.Close()

	_, ok = l2.(*net.TCPListener)
	assert.True(t, ok)
}
