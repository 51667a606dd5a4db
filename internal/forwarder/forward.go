package forwarder // import "openpodcast.dev/forwarder/internal/forwarder"

import (
	"errors"
	"log/slog"
	"net/http"

	"openpodcast.dev/forwarder/internal/analytics"
	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/feed"
	"openpodcast.dev/forwarder/internal/http/cookie"
	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/http/response/html"
	"openpodcast.dev/forwarder/internal/logging"
	"openpodcast.dev/forwarder/internal/metric"
)

func (h *handler) forward(w http.ResponseWriter, r *http.Request) {
	identity := h.classify(r, analytics.KindDownload)

	target, err := feed.Resolve(r.URL.Path, r.URL.String(),
		config.Opts.ForwardPrefix())
	if err != nil {
		if e, ok := errors.AsType[*feed.Error](err); ok {
			metric.ObserveResolveError(e.Kind.Label())
		}
		html.NotFoundWithMessage(w, r, err)
		return
	}

	ref := target.String()
	logging.FromContext(r.Context()).Debug("Forward to original URL",
		slog.String("ref", ref))
	h.dispatch(r, analytics.KindDownload, identity, ref)

	http.SetCookie(w, cookie.NewForwarder(request.IsHTTPS(r)))
	html.Redirect(w, r, ref)
}
