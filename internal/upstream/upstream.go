// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package upstream // import "openpodcast.dev/forwarder/internal/upstream"

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/logging"
	"openpodcast.dev/forwarder/internal/metric"
	"openpodcast.dev/forwarder/internal/reader/fetcher"
)

const feedKey = "feed"

// Feed is a response of the upstream server.
type Feed struct {
	Body       []byte
	Header     http.Header
	StatusCode int
	FetchedAt  time.Time
}

// OK reports whether the upstream answered with a 2xx status code.
func (self *Feed) OK() bool {
	return self.StatusCode >= 200 && self.StatusCode <= 299
}

// New returns a source of feedURL. Successful responses are reused for ttl,
// zero ttl disables caching.
func New(feedURL *url.URL, ttl time.Duration) *Source {
	return &Source{url: feedURL, ttl: ttl, now: time.Now}
}

// Source fetches the upstream feed. Concurrent fetches are coalesced into a
// single upstream request.
type Source struct {
	url *url.URL
	ttl time.Duration
	now func() time.Time

	sg     singleflight.Group
	mu     sync.RWMutex
	cached *Feed

	hit  atomic.Uint64
	miss atomic.Uint64
}

func (self *Source) URL() *url.URL { return self.url }

// Fetch returns the upstream feed, from cache if it's still fresh. Every
// call counts once in [Source.Stats]: as a miss if it made the upstream
// request, as a hit otherwise.
func (self *Source) Fetch(ctx context.Context) (*Feed, error) {
	if f := self.fromCache(); f != nil {
		self.hit.Add(1)
		return f, nil
	}

	var fetched bool
	ch := self.sg.DoChan(feedKey, func() (any, error) {
		if f := self.fromCache(); f != nil {
			return f, nil
		}
		fetched = true
		self.miss.Add(1)
		return self.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("upstream: wait for feed: %w", context.Cause(ctx))
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		} else if !fetched {
			self.hit.Add(1)
		}
		return res.Val.(*Feed), nil
	}
}

func (self *Source) fromCache() *Feed {
	if self.ttl <= 0 {
		return nil
	}

	self.mu.RLock()
	defer self.mu.RUnlock()
	if f := self.cached; f != nil && self.now().Sub(f.FetchedAt) < self.ttl {
		return f
	}
	return nil
}

func (self *Source) remember(f *Feed) {
	if self.ttl <= 0 || !f.OK() {
		return
	}
	self.mu.Lock()
	self.cached = f
	self.mu.Unlock()
}

// Stats returns number of requests served without and with an upstream
// request.
func (self *Source) Stats() (hit, miss uint64) {
	return self.hit.Load(), self.miss.Load()
}

func (self *Source) fetch(ctx context.Context) (*Feed, error) {
	log := logging.FromContext(ctx).With(
		slog.String("upstream", self.url.String()))
	ctx = logging.WithLogger(ctx, log)

	rb := fetcher.NewRequestBuilder().
		WithUserAgent("", config.Opts.HTTPClientUserAgent())

	f, err := self.do(ctx, rb, true)
	if err != nil {
		return nil, err
	}
	log.Info("Fetched upstream feed",
		slog.Int("status_code", f.StatusCode),
		slog.Int("size", len(f.Body)))
	self.remember(f)
	return f, nil
}

// Head proxies a HEAD request with header to the upstream feed.
func (self *Source) Head(ctx context.Context, header http.Header) (*Feed,
	error,
) {
	rb := fetcher.NewRequestBuilder().WithMethod(http.MethodHead).
		WithHeaders(header)
	if header.Get("User-Agent") == "" {
		rb.WithUserAgent("", config.Opts.HTTPClientUserAgent())
	}
	return self.do(ctx, rb, false)
}

// Ping checks the upstream server responds.
func (self *Source) Ping(ctx context.Context) error {
	rb := fetcher.NewRequestBuilder().WithMethod(http.MethodHead).
		WithUserAgent("", config.Opts.HTTPClientUserAgent())
	f, err := self.do(ctx, rb, false)
	if err != nil {
		return err
	} else if f.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("upstream: unexpected status code: %d",
			f.StatusCode)
	}
	return nil
}

func (self *Source) do(ctx context.Context, rb *fetcher.RequestBuilder,
	withBody bool,
) (*Feed, error) {
	startTime := time.Now()
	resp, err := rb.RequestWithContext(ctx, self.url.String())
	if err != nil {
		self.observe(rb.Method(), fetcher.Reason(err), startTime)
		return nil, fmt.Errorf("upstream: %s %s: %w", rb.Method(), self.url, err)
	}
	defer resp.Close()

	if err := resp.Err(); err != nil {
		self.observe(rb.Method(), fetcher.Reason(err), startTime)
		return nil, fmt.Errorf("upstream: %s %s: %w", rb.Method(), self.url, err)
	}

	f := &Feed{
		Header:     resp.Headers().Clone(),
		StatusCode: resp.StatusCode(),
		FetchedAt:  self.now(),
	}

	if withBody {
		b, err := resp.ReadBody()
		if err != nil {
			self.observe(rb.Method(), fetcher.Reason(err), startTime)
			return nil, fmt.Errorf("upstream: read body of %s: %w", self.url, err)
		}
		f.Body = b
	}
	self.observe(rb.Method(), strconv.Itoa(f.StatusCode), startTime)
	return f, nil
}

func (self *Source) observe(method, status string, startTime time.Time) {
	if !config.Opts.HasMetricsCollector() {
		return
	} else if status == "" {
		status = fetcher.ReasonClient
	}
	metric.UpstreamRequestDuration.WithLabelValues(method, status).
		Observe(time.Since(startTime).Seconds())
}
