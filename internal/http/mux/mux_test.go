package mux

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeMux(t *testing.T) {
	mux := New()
	require.NotNil(t, mux)

	var result []string
	makeHandleFunc := func(s string) func(http.ResponseWriter, *http.Request) {
		return func(w http.ResponseWriter, r *http.Request) {
			result = append(result, s+" "+r.URL.Path)
		}
	}

	makeMiddleware := func(s string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				result = append(result, s)
				next.ServeHTTP(w, r)
			})
		}
	}

	mux.NameHandleFunc("GET /liveness", makeHandleFunc("liveness"), "liveness").
		PrefixGroup("/podcast", func(mux *ServeMux) {
			mux.HandleFunc("GET /version", makeHandleFunc("version"))
			mux.Use(makeMiddleware("gzip"), makeMiddleware("requestId")).
				Use(makeMiddleware("accessLog")).
				HandleFunc("HEAD /{$}", makeHandleFunc("head")).
				NameHandleFunc("GET /{$}", makeHandleFunc("feed"), "feed").
				NameHandleFunc("GET /r/{path...}", makeHandleFunc("forward"),
					"forward")

			mux.PrefixGroup("/v1").
				Use(makeMiddleware("v1/auth")).
				NameHandleFunc("/items/{itemID}", makeHandleFunc("v1/item"), "item")
		})

	mux.Use(makeMiddleware("metricsAuth")).
		HandleFunc("/metrics", makeHandleFunc("metrics"))

	mux.Group().Use(makeMiddleware("something")).
		HandleFunc("/bar", makeHandleFunc("bar"))

	tests := []struct {
		name     string
		method   string
		endpoint string
		expected []string
		assert   func(t *testing.T, mux *ServeMux)
	}{
		{
			name:     "liveness",
			endpoint: "/liveness",
			expected: []string{"liveness /liveness"},
			assert: func(t *testing.T, mux *ServeMux) {
				assert.Equal(t, "/liveness", mux.NamedPath("liveness"))
			},
		},
		{
			name:     "version",
			endpoint: "/podcast/version",
			expected: []string{"version /version"},
		},
		{
			name:     "feed",
			endpoint: "/podcast/",
			expected: []string{"gzip", "requestId", "accessLog", "feed /"},
			assert: func(t *testing.T, mux *ServeMux) {
				assert.Equal(t, "/podcast/", mux.NamedPath("feed"))
				assert.Equal(t, "/podcast", mux.NamedPathPrefix("feed"))
			},
		},
		{
			name:     "head",
			method:   http.MethodHead,
			endpoint: "/podcast/",
			expected: []string{"gzip", "requestId", "accessLog", "head /"},
		},
		{
			name:     "forward",
			endpoint: "/podcast/r/some/ep1.mp3?ref=x",
			expected: []string{
				"gzip", "requestId", "accessLog", "forward /r/some/ep1.mp3",
			},
			assert: func(t *testing.T, mux *ServeMux) {
				assert.Equal(t, "/podcast/r/{path...}", mux.NamedPath("forward"))
				assert.Equal(t, "/podcast/r", mux.NamedPathPrefix("forward"))
			},
		},
		{
			name:     "item",
			endpoint: "/podcast/v1/items/123",
			expected: []string{
				"gzip", "requestId", "accessLog", "v1/auth", "v1/item /items/123",
			},
			assert: func(t *testing.T, mux *ServeMux) {
				assert.Equal(t, "/podcast/v1/items/123",
					mux.NamedPath("item", "itemID", "123"))
			},
		},
		{
			name:     "metrics",
			endpoint: "/metrics",
			expected: []string{"metricsAuth", "metrics /metrics"},
		},
		{
			name:     "bar",
			endpoint: "/bar",
			expected: []string{"metricsAuth", "something", "bar /bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result = result[:0]
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			r := httptest.NewRequest(method, tt.endpoint, nil)
			handler, pattern := mux.Handler(r)
			require.NotNil(t, handler)
			assert.NotEmpty(t, pattern)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.expected, result)
			if tt.assert != nil {
				tt.assert(t, mux)
			}
		})
	}
}

func TestServeMux_NamedPath_unknown(t *testing.T) {
	mux := New()
	assert.Empty(t, mux.NamedPath("unknown"))
	assert.Empty(t, mux.NamedPathPrefix("unknown"))
}

func TestServeMux_NamedPathPrefix_root(t *testing.T) {
	mux := New()
	mux.NameHandleFunc("GET /{path...}",
		func(http.ResponseWriter, *http.Request) {}, "forward")
	assert.Equal(t, "/{path...}", mux.NamedPath("forward"))
	assert.Empty(t, mux.NamedPathPrefix("forward"))
}
