// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package analytics // import "openpodcast.dev/forwarder/internal/analytics"

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/useragent"
)

// Request kinds.
const (
	KindFeed     = "rss"
	KindDownload = "mp3"
)

// Kind returns kind of a request with path: [KindFeed] for the root,
// [KindDownload] for paths under prefix, and the path itself otherwise.
func Kind(path, prefix string) string {
	switch {
	case path == "/" || path == "":
		return KindFeed
	case strings.HasPrefix(path, prefix+"/"):
		return KindDownload
	}
	return path
}

// Event describes a single client request.
type Event struct {
	Kind        string
	Upstream    string
	UpstreamRef string
	Client      string
	Bot         bool
	Path        string
	Headers     []Header
	UserAgent   string
	IP          string
	Country     string
	Time        time.Time
}

type Header struct {
	Name  string
	Value string
}

// NewEvent returns an event of request r. ref is the original URL of a
// download request and is empty for other kinds.
func NewEvent(r *http.Request, kind, upstream string,
	identity useragent.Identity, ref string,
) *Event {
	return &Event{
		Kind:        kind,
		Upstream:    upstream,
		UpstreamRef: ref,
		Client:      identity.Name,
		Bot:         identity.Bot,
		Path:        request.Path(r),
		Headers:     sortedHeaders(r.Header),
		UserAgent:   r.UserAgent(),
		IP:          clientIP(r),
		Country:     r.Header.Get("CF-IPCountry"),
		Time:        time.Now(),
	}
}

func sortedHeaders(h http.Header) []Header {
	headers := make([]Header, 0, len(h))
	for name, values := range h {
		headers = append(headers, Header{
			Name:  strings.ToLower(name),
			Value: strings.Join(values, ", "),
		})
	}
	slices.SortFunc(headers, func(a, b Header) int {
		return strings.Compare(a.Name, b.Name)
	})
	return headers
}

func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	} else if ip := request.ClientIP(r); ip != "" {
		return ip
	}
	return request.FindRemoteIP(r)
}

// HeaderString returns all headers as "name: value" pairs, joined with "; ".
func (self *Event) HeaderString() string {
	var b strings.Builder
	for i, h := range self.Headers {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
	}
	return b.String()
}

func (self *Event) Download() bool { return self.Kind == KindDownload }
