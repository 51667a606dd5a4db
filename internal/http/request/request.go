package request // import "openpodcast.dev/forwarder/internal/http/request"

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"openpodcast.dev/forwarder/internal/config"
)

func RequestURI(r *http.Request) string {
	if bp := config.Opts.BasePath(); bp != "" {
		return path.Join(bp, r.URL.RequestURI())
	}
	return r.URL.RequestURI()
}

// Path returns path of r as the client sent it, with the base path, which a
// prefix group strips from r.URL.
func Path(r *http.Request) string {
	return config.Opts.BasePath() + r.URL.Path
}

// Scheme returns the scheme the client used, as told by a reverse proxy via
// X-Forwarded-Proto, or as seen by the server.
func Scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		proto, _, _ = strings.Cut(proto, ",")
		switch proto = strings.ToLower(strings.TrimSpace(proto)); proto {
		case "http", "https":
			return proto
		}
	}

	if r.TLS != nil || config.Opts.HTTPS() {
		return "https"
	}
	return "http"
}

// PublicURL returns root URL of the service: BASE_URL if configured, or
// scheme and host of r.
func PublicURL(r *http.Request) *url.URL {
	if config.Opts.HasBaseURL() {
		if u, err := url.Parse(config.Opts.RootURL()); err == nil {
			return u
		}
	}
	return &url.URL{Scheme: Scheme(r), Host: r.Host}
}

// IsHTTPS reports whether the client connected over HTTPS.
func IsHTTPS(r *http.Request) bool { return Scheme(r) == "https" }
