package fetcher // import "openpodcast.dev/forwarder/internal/reader/fetcher"

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/logging"
)

var (
	limitConnections = NewLimitPerServer()
	limitRates       = NewRatePerServer()
)

func NewResponseSemaphore(ctx context.Context, r *RequestBuilder, rawURL string,
) (*ResponseSemaphore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("reader/fetcher: parse %q: %w", rawURL, err)
	}
	hostname := u.Hostname()

	if err := limitRates.Wait(ctx, hostname); err != nil {
		return nil, err
	}

	if err := limitConnections.Acquire(ctx, hostname); err != nil {
		return nil, err
	}

	//nolint:bodyclose // ResponseSemaphore.Close() it
	resp, err := r.WithContext(ctx).ExecuteRequest(rawURL)
	return &ResponseSemaphore{
		ResponseHandler: NewResponseHandler(resp, err),
		release:         func() { limitConnections.Release(hostname) },
	}, nil
}

type ResponseSemaphore struct {
	*ResponseHandler

	closed  bool
	release func()
}

func (self *ResponseSemaphore) Close() {
	if self.closed {
		return
	}
	self.ResponseHandler.Close()
	self.release()
	self.release = nil
	self.closed = true
}

func NewWeightedRefs(n int64) *weightedRefs {
	return &weightedRefs{Weighted: semaphore.NewWeighted(n)}
}

type weightedRefs struct {
	*semaphore.Weighted
	refs int
}

func NewLimitPerServer() *limitHosts {
	return &limitHosts{servers: map[string]*weightedRefs{}}
}

type limitHosts struct {
	servers map[string]*weightedRefs
	mu      sync.Mutex
}

func (self *limitHosts) Acquire(ctx context.Context, hostname string) error {
	self.mu.Lock()
	s := self.servers[hostname]
	if s == nil {
		s = NewWeightedRefs(config.Opts.FindHostLimits(hostname).Connections)
		self.servers[hostname] = s
	}
	s.refs++
	self.mu.Unlock()

	log := logging.FromContext(ctx).With(slog.String("hostname", hostname))
	if s.TryAcquire(1) {
		log.Debug("try acquired connection semaphore")
		return nil
	}

	log.Info("max connections limit reached")
	if err := s.Acquire(ctx, 1); err != nil {
		self.unref(hostname, s)
		return fmt.Errorf(
			"reader/fetcher: acquire semaphore for host %q: %w", hostname, err)
	}

	log.Info("acquired connection semaphore")
	return nil
}

func (self *limitHosts) Release(hostname string) {
	self.mu.Lock()
	s := self.servers[hostname]
	self.mu.Unlock()
	self.unref(hostname, s)
	s.Release(1)
}

func (self *limitHosts) unref(hostname string, s *weightedRefs) {
	self.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(self.servers, hostname)
	}
	self.mu.Unlock()
}

func (self *limitHosts) len() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.servers)
}

func NewRatePerServer() *rateHosts {
	return &rateHosts{servers: map[string]*rate.Limiter{}}
}

// rateHosts keeps a token bucket per hostname. Unlike connection semaphores,
// buckets live forever, because they must remember recent requests.
type rateHosts struct {
	servers map[string]*rate.Limiter
	mu      sync.Mutex
}

func (self *rateHosts) limiter(hostname string) *rate.Limiter {
	self.mu.Lock()
	defer self.mu.Unlock()
	if l, ok := self.servers[hostname]; ok {
		return l
	}
	l := newLimiter(config.Opts.FindHostLimits(hostname).Rate)
	self.servers[hostname] = l
	return l
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond),
		max(1, int(math.Ceil(perSecond))))
}

// Wait blocks until a request to hostname is allowed. It returns
// [ErrTooManyRequests] without waiting, if ctx expires before that.
func (self *rateHosts) Wait(ctx context.Context, hostname string) error {
	r := self.limiter(hostname).Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		r.Cancel()
		return NewErrTooManyRequests(hostname, time.Now().Add(delay))
	}

	logging.FromContext(ctx).Info("rate limit reached",
		slog.String("hostname", hostname), slog.Duration("delay", delay))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return fmt.Errorf("reader/fetcher: wait rate limit for host %q: %w",
			hostname, context.Cause(ctx))
	}
}
