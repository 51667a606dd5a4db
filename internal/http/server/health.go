package server

import (
	"fmt"
	"net/http"

	"openpodcast.dev/forwarder/internal/upstream"
	"openpodcast.dev/forwarder/internal/worker"
)

func makeReadinessProbe(source *upstream.Source, pool *worker.Pool,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !pool.Running() {
			http.Error(w, "Analytics worker pool is not running",
				http.StatusServiceUnavailable)
			return
		}

		if err := source.Ping(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("Upstream Error: %q", err),
				http.StatusServiceUnavailable)
			return
		}
		livenessProbe(w, r)
	}
}

func livenessProbe(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
