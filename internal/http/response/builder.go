// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package response // import "openpodcast.dev/forwarder/internal/http/response"

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
)

const ContentSecurityPolicyForUntrustedContent = "default-src 'none'; form-action 'none'; sandbox;"

// Builder generates HTTP responses.
type Builder struct {
	w          http.ResponseWriter
	r          *http.Request
	statusCode int
	headers    http.Header
	cookies    []*http.Cookie
	body       any
}

// New creates a new response builder.
func New(w http.ResponseWriter, r *http.Request) *Builder {
	return &Builder{
		w:          w,
		r:          r,
		statusCode: http.StatusOK,
		headers:    make(http.Header),
	}
}

// WithStatus uses the given status code to build the response.
func (b *Builder) WithStatus(statusCode int) *Builder {
	b.statusCode = statusCode
	return b
}

// WithHeader adds the given HTTP header to the response.
func (b *Builder) WithHeader(key, value string) *Builder {
	b.headers.Set(key, value)
	return b
}

// WithHeaders copies all values of h into the response, except names listed
// in skip.
func (b *Builder) WithHeaders(h http.Header, skip ...string) *Builder {
	for name, values := range h {
		if skipHeader(name, skip) {
			continue
		}
		for _, v := range values {
			b.headers.Add(name, v)
		}
	}
	return b
}

func skipHeader(name string, skip []string) bool {
	for _, s := range skip {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

// WithCookie adds Set-Cookie header with c.
func (b *Builder) WithCookie(c *http.Cookie) *Builder {
	b.cookies = append(b.cookies, c)
	return b
}

// WithBody uses the given body to build the response.
func (b *Builder) WithBody(body any) *Builder {
	b.body = body
	return b
}

// WithoutCompression disables HTTP compression.
func (b *Builder) WithoutCompression() *Builder {
	b.headers.Set(gzhttp.HeaderNoCompression, "yes")
	return b
}

// WithETag adds etag to the response and answers with 304 Not Modified if
// the client already has it. Otherwise callback builds the response.
func (b *Builder) WithETag(etag string, callback func(*Builder)) {
	b.headers.Set("ETag", etag)
	if etagMatch(b.r.Header.Get("If-None-Match"), etag) {
		b.statusCode = http.StatusNotModified
		b.body = nil
		b.Write()
		return
	}
	callback(b)
}

func etagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for s := range strings.SplitSeq(ifNoneMatch, ",") {
		s = strings.TrimPrefix(strings.TrimSpace(s), "W/")
		if s == "*" || s == etag {
			return true
		}
	}
	return false
}

// Write generates the HTTP response.
func (b *Builder) Write() {
	if b.body == nil {
		b.writeHeaders()
		return
	}

	switch v := b.body.(type) {
	case []byte:
		b.write(v)
	case string:
		b.write([]byte(v))
	case error:
		b.write([]byte(v.Error()))
	case io.Reader:
		b.writeHeaders()
		if _, err := io.Copy(b.w, v); err != nil {
			slog.Error("http/response: unable to write response body",
				slog.Any("error", err))
		}
	}
}

func (b *Builder) writeHeaders() {
	b.headers.Set("X-Content-Type-Options", "nosniff")
	b.headers.Set("X-Frame-Options", "DENY")
	b.headers.Set("Referrer-Policy", "no-referrer")

	h := b.w.Header()
	for key, values := range b.headers {
		h[key] = values
	}

	for _, c := range b.cookies {
		http.SetCookie(b.w, c)
	}
	b.w.WriteHeader(b.statusCode)
}

func (b *Builder) write(data []byte) {
	b.writeHeaders()
	if b.r.Method == http.MethodHead {
		return
	}

	if _, err := b.w.Write(data); err != nil {
		slog.Error("http/response: unable to write response",
			slog.Any("error", err))
	}
}
