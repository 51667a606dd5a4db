// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package metric // import "openpodcast.dev/forwarder/internal/metric"

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/http/response/html"
	"openpodcast.dev/forwarder/internal/logging"
)

const namespace = "forwarder"

// Statuses of analytics events.
const (
	EventSent    = "sent"
	EventError   = "error"
	EventDropped = "dropped"
)

// Prometheus Metrics.
var (
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Classified client requests",
		},
		[]string{"kind", "client", "bot"},
	)

	ResolveErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_errors_total",
			Help:      "Indirection requests rejected by the reference resolver",
		},
		[]string{"kind"},
	)

	FeedRewriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_rewrite_duration_seconds",
			Help:      "Processing time to fetch and rewrite the upstream feed",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream feed request duration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"method", "status"},
	)

	AnalyticsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_total",
			Help:      "Analytics events by sink and delivery status",
		},
		[]string{"sink", "status"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(ResolveErrors)
	prometheus.MustRegister(FeedRewriteDuration)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(AnalyticsEvents)
}

// ObserveRequest counts a request of a classified client.
func ObserveRequest(kind, client string, bot bool) {
	if config.Opts.HasMetricsCollector() {
		Requests.WithLabelValues(kind, client, strconv.FormatBool(bot)).Inc()
	}
}

func ObserveResolveError(kind string) {
	if config.Opts.HasMetricsCollector() {
		ResolveErrors.WithLabelValues(kind).Inc()
	}
}

func ObserveAnalyticsEvent(sink, status string) {
	if config.Opts.HasMetricsCollector() {
		AnalyticsEvents.WithLabelValues(sink, status).Inc()
	}
}

func Handler() http.Handler {
	promHandler := promhttp.Handler()
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !isAllowedToAccessMetricsEndpoint(r) {
			logging.FromContext(r.Context()).Warn(
				"Authentication failed while accessing the metrics endpoint",
				slog.String("client_ip", request.ClientIP(r)),
				slog.String("client_user_agent", r.UserAgent()),
				slog.String("client_remote_addr", r.RemoteAddr))
			html.Forbidden(w, r)
			return
		}
		promHandler.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func isAllowedToAccessMetricsEndpoint(r *http.Request) bool {
	log := logging.FromContext(r.Context()).With(
		slog.Bool("authentication_failed", true),
		slog.String("client_ip", request.ClientIP(r)),
		slog.String("client_user_agent", r.UserAgent()),
		slog.String("client_remote_addr", r.RemoteAddr))

	needAuth := config.Opts.MetricsUsername() != "" &&
		config.Opts.MetricsPassword() != ""
	if needAuth {
		username, password, authOK := r.BasicAuth()
		switch {
		case !authOK:
			log.Warn("Metrics endpoint accessed without authentication header")
			return false
		case username == "" || password == "":
			log.Warn("Metrics endpoint accessed with empty username or password")
			return false
		case username != config.Opts.MetricsUsername() || password != config.Opts.MetricsPassword():
			log.Warn("Metrics endpoint accessed with invalid username or password")
			return false
		}
	}

	remoteIP := request.FindRemoteIP(r)
	if remoteIP == "@" {
		// This indicates a request sent via a Unix socket, always consider these
		// trusted.
		return true
	}

	for _, cidr := range config.Opts.MetricsAllowedNetworks() {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Error("Metrics endpoint accessed with invalid CIDR",
				slog.String("cidr", cidr))
			return false
		}

		// We use r.RemoteAddr in this case because HTTP headers like
		// X-Forwarded-For can be easily spoofed. The recommendation is to use HTTP
		// Basic authentication.
		if network.Contains(net.ParseIP(remoteIP)) {
			return true
		}
	}
	return false
}
