// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package forwarder // import "openpodcast.dev/forwarder/internal/forwarder"

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"openpodcast.dev/forwarder/internal/analytics"
	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/http/cookie"
	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/http/response"
	"openpodcast.dev/forwarder/internal/http/response/html"
	"openpodcast.dev/forwarder/internal/logging"
	"openpodcast.dev/forwarder/internal/metric"
)

// Upstream headers, which don't describe the rewritten body or can't pass a
// proxy.
var skipResponseHeaders = [...]string{
	"Accept-Ranges",
	"Connection",
	"Content-Encoding",
	"Content-Length",
	"Content-MD5",
	"Content-Range",
	"ETag",
	"Keep-Alive",
	"Transfer-Encoding",
}

func (h *handler) headFeed(w http.ResponseWriter, r *http.Request) {
	f, err := h.source.Head(r.Context(), r.Header)
	if err != nil {
		html.BadGateway(w, r, err)
		return
	}

	response.New(w, r).
		WithStatus(f.StatusCode).
		WithHeaders(f.Header, "Connection", "Keep-Alive", "Transfer-Encoding").
		Write()
}

func (h *handler) showFeed(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	identity := h.classify(r, analytics.KindFeed)
	if config.Opts.AnalyticsFeedRequests() {
		h.dispatch(r, analytics.KindFeed, identity, "")
	}

	f, err := h.source.Fetch(r.Context())
	if err != nil {
		observeRewrite("error", startTime)
		html.BadGateway(w, r, err)
		return
	}

	b := response.New(w, r).
		WithStatus(f.StatusCode).
		WithHeaders(f.Header, skipResponseHeaders[:]...).
		WithCookie(cookie.NewForwarder(request.IsHTTPS(r)))

	if !f.OK() {
		logging.FromContext(r.Context()).Warn("Upstream feed not available",
			slog.Int("status_code", f.StatusCode))
		observeRewrite(strconv.Itoa(f.StatusCode), startTime)
		b.WithBody(f.Body).Write()
		return
	}

	body := h.replacer(r).Replace(string(f.Body))
	observeRewrite(strconv.Itoa(f.StatusCode), startTime)

	b.WithETag(etag(body), func(b *response.Builder) {
		b.WithBody(body).Write()
	})
}

func etag(body string) string {
	return strconv.Quote(strconv.FormatUint(xxhash.Sum64String(body), 16))
}

func observeRewrite(status string, startTime time.Time) {
	if config.Opts.HasMetricsCollector() {
		metric.FeedRewriteDuration.WithLabelValues(status).
			Observe(time.Since(startTime).Seconds())
	}
}
