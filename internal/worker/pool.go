// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package worker // import "openpodcast.dev/forwarder/internal/worker"

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"openpodcast.dev/forwarder/internal/logging"
)

// Job is a unit of background work. ctx is canceled when the pool stops.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// NewPool creates a pool of n background workers with a queue of queueSize
// jobs.
func NewPool(ctx context.Context, n, queueSize int) *Pool {
	self := &Pool{
		ctx:   ctx,
		queue: make(chan queueItem, queueSize),
	}
	self.g.SetLimit(n)
	return self
}

// Pool handles a pool of workers.
type Pool struct {
	ctx     context.Context
	queue   chan queueItem
	g       errgroup.Group
	running atomic.Bool

	index atomic.Uint64
}

type queueItem struct {
	Job

	index  uint64
	queued time.Time
}

// TryPush adds job to the queue, if it has free space. It never blocks.
func (self *Pool) TryPush(job Job) bool {
	item := queueItem{
		Job:    job,
		index:  self.index.Add(1),
		queued: time.Now(),
	}

	select {
	case self.queue <- item:
		return true
	default:
		return false
	}
}

// Running reports whether Run is processing the queue.
func (self *Pool) Running() bool { return self.running.Load() }

// Queued returns the number of jobs waiting for a worker.
func (self *Pool) Queued() int { return len(self.queue) }

// Run processes queued jobs until the pool's context is canceled. Before
// return it waits for jobs in progress.
func (self *Pool) Run() error {
	log := logging.FromContext(self.ctx)
	log.Info("worker pool started")
	self.running.Store(true)
	defer self.running.Store(false)

	for {
		select {
		case <-self.ctx.Done():
			_ = self.g.Wait()
			log.Info("worker pool stopped", slog.Int("dropped", len(self.queue)))
			return nil
		case job := <-self.queue:
			self.g.Go(func() error {
				self.runJob(job)
				return nil
			})
		}
	}
}

func (self *Pool) runJob(job queueItem) {
	log := logging.FromContext(self.ctx).With(
		slog.Uint64("job", job.index),
		slog.String("name", job.Name))
	log.Debug("worker: job received",
		slog.Duration("queued", time.Since(job.queued)))

	startTime := time.Now()
	if err := job.Run(logging.WithLogger(self.ctx, log)); err != nil {
		log.Warn("worker: job failed", slog.Any("error", err),
			slog.Duration("elapsed", time.Since(startTime)))
		return
	}
	log.Debug("worker: job completed",
		slog.Duration("elapsed", time.Since(startTime)))
}
