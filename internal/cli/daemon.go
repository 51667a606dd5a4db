// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cli // import "openpodcast.dev/forwarder/internal/cli"

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"openpodcast.dev/forwarder/internal/analytics"
	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/http/server"
	"openpodcast.dev/forwarder/internal/integration/openpodcast"
	"openpodcast.dev/forwarder/internal/integration/posthog"
	"openpodcast.dev/forwarder/internal/metric"
	"openpodcast.dev/forwarder/internal/upstream"
	"openpodcast.dev/forwarder/internal/worker"
)

const shutdownTimeout = 5 * time.Second

func NewDaemon() *Daemon { return &Daemon{} }

type Daemon struct {
	g          *errgroup.Group
	httpServer *http.Server
	pool       *worker.Pool
	source     *upstream.Source
	dispatcher *analytics.Dispatcher
}

func (self *Daemon) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, os.Interrupt)
	defer cancel()

	slog.Info("Starting daemon...",
		slog.String("upstream", config.Opts.UpstreamFeedURL().String()),
		slog.String("website", config.Opts.WebsiteURL().String()))

	ctx, err := self.start(ctx)
	if err != nil {
		return err
	}
	return self.wait(ctx)
}

func (self *Daemon) start(ctx context.Context) (context.Context, error) {
	listener, err := server.Listener()
	if err != nil {
		return nil, err
	}

	self.source = upstream.New(config.Opts.UpstreamFeedURL(),
		config.Opts.FeedCacheTTL())

	self.g, ctx = errgroup.WithContext(ctx)
	self.pool = worker.NewPool(ctx, config.Opts.AnalyticsWorkers(),
		config.Opts.AnalyticsQueueSize())
	self.g.Go(self.pool.Run)

	self.dispatcher = analytics.NewDispatcher(self.pool,
		config.Opts.AnalyticsTimeout(), makeSinks()...)
	if self.dispatcher.Enabled() {
		slog.Info("Analytics enabled",
			slog.Any("sinks", self.dispatcher.Sinks()),
			slog.Bool("feed_requests", config.Opts.AnalyticsFeedRequests()))
	} else {
		slog.Info("Analytics disabled, no sinks configured")
	}

	if config.Opts.HasMetricsCollector() {
		metric.RegisterMetrics()
	}

	self.httpServer = server.StartWebServer(self.source, self.pool,
		self.dispatcher, self.g, listener)
	return ctx, nil
}

func makeSinks() []analytics.Sink {
	var sinks []analytics.Sink
	if config.Opts.HasPostHog() {
		sinks = append(sinks, posthog.NewClient(config.Opts.PostHogAPIKey(),
			config.Opts.PostHogAPIEndpoint()))
	}

	if config.Opts.HasOpenPodcast() {
		sinks = append(sinks, openpodcast.NewClient(
			config.Opts.OpenPodcastAPIKey(),
			config.Opts.OpenPodcastAPIEndpoint()))
	}
	return sinks
}

func (self *Daemon) wait(ctx context.Context) error {
	<-ctx.Done()
	if self.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down the process gracefully...")
		if err := self.httpServer.Shutdown(ctx); err != nil {
			slog.Error("failed shutdown http server", slog.Any("error", err))
		}
	}

	if err := self.g.Wait(); err != nil {
		slog.Error("process stopped with error", slog.Any("error", err))
		return fmt.Errorf("process stopped with error: %w", err)
	}
	slog.Info("Process gracefully stopped")
	return nil
}
