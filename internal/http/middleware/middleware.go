// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package middleware // import "openpodcast.dev/forwarder/internal/http/middleware"

import (
	"log/slog"
	"net/http"
	"time"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/logging"
)

type MiddlewareFunc = func(next http.Handler) http.Handler

func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.Opts.HasHSTS() && request.IsHTTPS(r) {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		}

		clientIP := request.FindClientIP(r, config.Opts.TrustedProxy)
		ctx := request.WithClientIP(r.Context(), clientIP)

		startTime := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		methodURL := r.Method + " " + r.URL.String()
		logging.FromContext(ctx).Debug(methodURL,
			slog.String("client_ip", clientIP),
			slog.String("protocol", r.Proto),
			slog.Duration("execution_time", time.Since(startTime)))
	})
}
