// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package forwarder // import "openpodcast.dev/forwarder/internal/forwarder"

import (
	"log/slog"
	"net/http"

	"openpodcast.dev/forwarder/internal/analytics"
	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/feed"
	"openpodcast.dev/forwarder/internal/http/mux"
	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/logging"
	"openpodcast.dev/forwarder/internal/metric"
	"openpodcast.dev/forwarder/internal/upstream"
	"openpodcast.dev/forwarder/internal/useragent"
)

type handler struct {
	source     *upstream.Source
	dispatcher *analytics.Dispatcher
	table      *useragent.Table
	prefix     string
}

// Serve declares routes of the feed and indirection endpoints.
func Serve(m *mux.ServeMux, source *upstream.Source,
	dispatcher *analytics.Dispatcher,
) {
	h := &handler{
		source:     source,
		dispatcher: dispatcher,
		table:      config.Opts.UserAgentTable(),
	}

	m.HandleFunc("HEAD /{$}", h.headFeed)
	m.NameHandleFunc("GET /{$}", h.showFeed, "feed")
	m.NameHandleFunc("GET "+config.Opts.ForwardPrefix()+"/{path...}",
		h.forward, "forward")
	h.prefix = m.NamedPathPrefix("forward")
}

// classify identifies the client of r and counts its request.
func (h *handler) classify(r *http.Request, kind string) useragent.Identity {
	identity := h.table.Classify(r.UserAgent())
	metric.ObserveRequest(kind, identity.Name, identity.Bot)
	log := logging.FromContext(r.Context()).With(
		slog.String("kind", kind),
		slog.String("user_agent", r.UserAgent()))
	if !identity.Known() {
		log.Info("Unknown client")
		return identity
	}

	log.Info("Classified client",
		slog.String("client", identity.Name),
		slog.Bool("bot", identity.Bot))
	return identity
}

func (h *handler) dispatch(r *http.Request, kind string,
	identity useragent.Identity, ref string,
) {
	if !h.dispatcher.Enabled() {
		return
	}
	event := analytics.NewEvent(r, kind, h.source.URL().String(), identity, ref)
	h.dispatcher.Dispatch(r.Context(), event)
}

// replacer returns the feed replacer, which points indirection URLs back to
// this service, as seen by the client of r.
func (h *handler) replacer(r *http.Request) *feed.Replacer {
	return feed.NewReplacer(config.Opts.WebsiteURL(), request.PublicURL(r),
		h.prefix)
}
