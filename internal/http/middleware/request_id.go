package middleware // import "openpodcast.dev/forwarder/internal/http/middleware"

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/logging"
)

var nextRequestId atomic.Uint64

func RequestId(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := nextRequestId.Add(1)
		ctx := request.WithRequestID(r.Context(), strconv.FormatUint(id, 10))
		ctx = logging.WithLogger(ctx,
			logging.FromContext(ctx).With(slog.Uint64("rid", id)))
		next.ServeHTTP(w, r.WithContext(ctx))
	}
	return http.HandlerFunc(fn)
}
