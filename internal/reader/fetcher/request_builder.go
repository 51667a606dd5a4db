// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package fetcher // import "openpodcast.dev/forwarder/internal/reader/fetcher"

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/logging"
)

// Headers of a client request, which must not be copied into upstream
// requests.
var hopHeaders = [...]string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Host",
	"Content-Length",
	"Accept-Encoding",
}

// Request fetches requestURL using default settings.
func Request(ctx context.Context, requestURL string) (*ResponseSemaphore,
	error,
) {
	return NewRequestBuilder().RequestWithContext(ctx, requestURL)
}

type RequestBuilder struct {
	ctx              context.Context
	method           string
	headers          http.Header
	clientProxyURL   *url.URL
	clientTimeout    time.Duration
	withoutRedirects bool

	customizedClient bool
}

func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		method:         http.MethodGet,
		headers:        make(http.Header),
		clientProxyURL: config.Opts.HTTPClientProxyURL(),
		clientTimeout:  config.Opts.HTTPClientTimeout(),
	}
}

func (r *RequestBuilder) WithContext(ctx context.Context) *RequestBuilder {
	r.ctx = ctx
	return r
}

func (r *RequestBuilder) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

func (r *RequestBuilder) WithMethod(method string) *RequestBuilder {
	r.method = method
	return r
}

func (r *RequestBuilder) Method() string { return r.method }

func (r *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	r.headers.Set(key, value)
	return r
}

// WithHeaders copies all end-to-end headers of h.
func (r *RequestBuilder) WithHeaders(h http.Header) *RequestBuilder {
	h = h.Clone()
	for _, key := range hopHeaders {
		h.Del(key)
	}
	for key, values := range h {
		r.headers[key] = values
	}
	return r
}

func (r *RequestBuilder) WithETag(etag string) *RequestBuilder {
	if etag != "" {
		r.headers.Set("If-None-Match", etag)
	}
	return r
}

func (r *RequestBuilder) WithUserAgent(userAgent string, defaultUserAgent string) *RequestBuilder {
	if userAgent != "" {
		r.headers.Set("User-Agent", userAgent)
	} else {
		r.headers.Set("User-Agent", defaultUserAgent)
	}
	return r
}

func (r *RequestBuilder) WithProxyURL(proxyURL *url.URL) *RequestBuilder {
	r.clientProxyURL = proxyURL
	r.customizedClient = true
	return r
}

func (r *RequestBuilder) WithTimeout(d time.Duration) *RequestBuilder {
	r.clientTimeout = d
	r.customizedClient = true
	return r
}

func (r *RequestBuilder) Timeout() time.Duration { return r.clientTimeout }

func (r *RequestBuilder) WithoutRedirects() *RequestBuilder {
	r.withoutRedirects = true
	r.customizedClient = true
	return r
}

func (r *RequestBuilder) ExecuteRequest(requestURL string) (*http.Response,
	error,
) {
	req, err := r.req(requestURL)
	if err != nil {
		return nil, err
	}

	var proxyURLRedacted string
	if r.clientProxyURL != nil {
		proxyURLRedacted = r.clientProxyURL.Redacted()
	}

	log := logging.FromContext(r.Context())
	log.Debug("Making outgoing request",
		slog.Bool("customized", r.customizedClient),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Any("headers", req.Header),
		slog.Bool("without_redirects", r.withoutRedirects),
		slog.String("client_proxy_url", proxyURLRedacted))

	start := time.Now()
	resp, err := r.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("reader/fetcher: do http request: %w", err)
	}

	log.Debug("Got response",
		slog.Int("status_code", resp.StatusCode),
		slog.String("status", resp.Status),
		slog.Int64("content_length", resp.ContentLength),
		slog.String("proto", resp.Proto),
		slog.Duration("request_time", time.Since(start)))
	return resp, nil
}

var (
	defaultClient *http.Client
	onceClient    sync.Once
)

func (r *RequestBuilder) client() *http.Client {
	if r.customizedClient {
		return r.makeClient()
	}
	onceClient.Do(func() { defaultClient = r.makeClient() })
	return defaultClient
}

func (r *RequestBuilder) makeClient() *http.Client {
	client := &http.Client{
		Transport: r.transport(),
		Timeout:   r.Timeout(),
	}

	if r.withoutRedirects {
		client.CheckRedirect = withoutRedirects
	}
	return client
}

func withoutRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func (r *RequestBuilder) transport() http.RoundTripper {
	dialer := &net.Dialer{Timeout: r.Timeout()}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   r.Timeout(),
		DisableKeepAlives:     r.customizedClient,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: r.Timeout(),

		// Setting `DialContext` disables HTTP/2, this option forces the transport
		// to try HTTP/2 regardless.
		ForceAttemptHTTP2: true,
	}

	if r.clientProxyURL != nil {
		transport.Proxy = http.ProxyURL(r.clientProxyURL)
	}
	return gzhttp.Transport(transport)
}

func (r *RequestBuilder) req(requestURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(r.Context(), r.method, requestURL,
		nil)
	if err != nil {
		return nil, fmt.Errorf("reader/fetcher: create http request: %w", err)
	}
	req.Header = r.headers.Clone()
	return req, nil
}

func (r *RequestBuilder) Request(requestURL string) (*ResponseSemaphore,
	error,
) {
	return NewResponseSemaphore(r.Context(), r, requestURL)
}

func (r *RequestBuilder) RequestWithContext(ctx context.Context,
	requestURL string,
) (*ResponseSemaphore, error) {
	return NewResponseSemaphore(ctx, r, requestURL)
}
