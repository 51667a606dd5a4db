// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package fetcher // import "openpodcast.dev/forwarder/internal/reader/fetcher"

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openpodcast.dev/forwarder/internal/config"
)

func loadConfig(t *testing.T) {
	t.Helper()
	os.Clearenv()
	t.Setenv("UPSTREAM_FEED_URL", "https://example.com/feed.xml")
	t.Setenv("WEBSITE_URL", "https://example.org")
	require.NoError(t, config.Load(""))
}

func TestNewRequestBuilder(t *testing.T) {
	loadConfig(t)

	builder := NewRequestBuilder()
	require.NotNil(t, builder)
	assert.Equal(t, config.Opts.HTTPClientTimeout(), builder.Timeout())
	assert.Equal(t, http.MethodGet, builder.Method())
	assert.NotNil(t, builder.headers)
	assert.Equal(t, context.Background(), builder.Context())
}

func TestRequestBuilder_WithHeader(t *testing.T) {
	loadConfig(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom-value", r.Header.Get("Custom-Header"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	builder := NewRequestBuilder()
	resp, err := builder.WithHeader("Custom-Header", "custom-value").Request(server.URL)
	require.NoError(t, err)
	require.NotNil(t, resp)
	defer resp.Close()
	require.NoError(t, resp.Err())
}

func TestRequestBuilder_WithHeaders(t *testing.T) {
	loadConfig(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Overcast/3.0", r.Header.Get("User-Agent"))
		assert.Equal(t, []string{"a", "b"}, r.Header.Values("X-Multi"))
		assert.Empty(t, r.Header.Get("Proxy-Authorization"))
		assert.Empty(t, r.Header.Get("Keep-Alive"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := http.Header{}
	h.Set("User-Agent", "Overcast/3.0")
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")
	h.Set("Proxy-Authorization", "Basic Zm9vOmJhcg==")
	h.Set("Keep-Alive", "timeout=5")

	resp, err := NewRequestBuilder().WithHeaders(h).Request(server.URL)
	require.NoError(t, err)
	defer resp.Close()
	require.NoError(t, resp.Err())
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	// the source header is untouched
	assert.Equal(t, "timeout=5", h.Get("Keep-Alive"))
}

func TestRequestBuilder_WithMethod(t *testing.T) {
	loadConfig(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := NewRequestBuilder().WithMethod(http.MethodHead).
		Request(server.URL)
	require.NoError(t, err)
	defer resp.Close()
	require.NoError(t, resp.Err())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, "yes", resp.Headers().Get("X-Upstream"))
}

func TestRequestBuilder_WithETag(t *testing.T) {
	loadConfig(t)

	tests := []struct {
		name     string
		etag     string
		expected string
	}{
		{"with etag", "test-etag", "test-etag"},
		{"empty etag", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.expected, r.Header.Get("If-None-Match"))
				w.WriteHeader(http.StatusOK)
			}))
			t.Cleanup(func() { server.Close() })

			builder := NewRequestBuilder()
			resp, err := builder.WithETag(tt.etag).Request(server.URL)
			require.NoError(t, err)
			require.NotNil(t, resp)
			t.Cleanup(func() { resp.Close() })
		})
	}
}

func TestRequestBuilder_WithUserAgent(t *testing.T) {
	loadConfig(t)

	tests := []struct {
		name           string
		userAgent      string
		defaultAgent   string
		expectedHeader string
	}{
		{"custom user agent", "CustomAgent/1.0", "DefaultAgent/1.0", "CustomAgent/1.0"},
		{"default user agent", "", "DefaultAgent/1.0", "DefaultAgent/1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.expectedHeader, r.Header.Get("User-Agent"))
				w.WriteHeader(http.StatusOK)
			}))
			t.Cleanup(func() { server.Close() })

			builder := NewRequestBuilder()
			resp, err := builder.WithUserAgent(tt.userAgent, tt.defaultAgent).Request(server.URL)
			require.NoError(t, err)
			require.NotNil(t, resp)
			t.Cleanup(func() { resp.Close() })
		})
	}
}

func TestRequestBuilder_WithoutRedirects(t *testing.T) {
	loadConfig(t)

	redirectServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer redirectServer.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, redirectServer.URL, http.StatusFound)
	}))
	defer server.Close()

	builder := NewRequestBuilder()
	resp, err := builder.WithoutRedirects().Request(server.URL)
	require.NoError(t, err)
	require.NotNil(t, resp)
	defer resp.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, redirectServer.URL, resp.Header("Location"))
}

func TestRequestBuilder_WithTimeout(t *testing.T) {
	loadConfig(t)

	builder := NewRequestBuilder().WithTimeout(3 * time.Second)
	assert.Equal(t, 3*time.Second, builder.Timeout())
	assert.True(t, builder.customizedClient)
}

func TestRequestBuilder_WithProxyURL(t *testing.T) {
	loadConfig(t)

	proxyURL, err := url.Parse("http://proxy.example.com:3128")
	require.NoError(t, err)

	builder := NewRequestBuilder().WithProxyURL(proxyURL)
	assert.Equal(t, proxyURL, builder.clientProxyURL)
	assert.True(t, builder.customizedClient)
}

func TestRequestBuilder_ChainedMethods(t *testing.T) {
	loadConfig(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestAgent/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "test-etag", r.Header.Get("If-None-Match"))
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := NewRequestBuilder().
		WithUserAgent("TestAgent/1.0", "DefaultAgent/1.0").
		WithETag("test-etag").
		WithHeader("X-Custom", "value").
		RequestWithContext(t.Context(), server.URL)
	require.NoError(t, err)
	require.NotNil(t, resp)
	defer resp.Close()
}

func TestRequestBuilder_InvalidURL(t *testing.T) {
	loadConfig(t)

	_, err := NewRequestBuilder().Request(":|invalid-url")
	require.Error(t, err)
}

func TestRequestBuilder_ConnectionRefused(t *testing.T) {
	loadConfig(t)

	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()

	resp, err := NewRequestBuilder().Request(serverURL)
	require.NoError(t, err)
	defer resp.Close()

	require.Error(t, resp.Err())
	clientErr, ok := resp.Err().(*ClientError)
	require.True(t, ok)
	assert.Equal(t, ReasonNetwork, clientErr.Reason)
	assert.Equal(t, ReasonNetwork, Reason(resp.Err()))
}
