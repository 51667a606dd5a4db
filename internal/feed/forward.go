// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package feed // import "openpodcast.dev/forwarder/internal/feed"

import (
	"html"
	"net/url"
	"strings"
)

// RefParam is the query parameter of indirection URLs, which carries the
// original URL.
const RefParam = "ref"

// AudioPath reports whether path looks like an audio file we forward. It's a
// plain suffix match, without a dot boundary.
func AudioPath(path string) bool {
	return strings.HasSuffix(path, "mp3") || strings.HasSuffix(path, "aac")
}

// Forwardable reports whether u is an http(s) URL of an audio file.
func Forwardable(u *url.URL) bool {
	switch u.Scheme {
	case "http", "https":
	default:
		return false
	}
	return AudioPath(u.EscapedPath())
}

// BuildForward returns indirection URL of original, which points to base
// host under prefix.
func BuildForward(original, base *url.URL, prefix string) *url.URL {
	forward := &url.URL{
		Scheme: base.Scheme,
		User:   base.User,
		Host:   base.Host,
		Path:   prefix + original.Path,
	}
	if original.RawPath != "" {
		forward.RawPath = prefix + original.RawPath
	}
	forward.RawQuery = url.Values{RefParam: {original.String()}}.Encode()
	return forward
}

// EscapeURL renders u for embedding into feed markup.
func EscapeURL(u *url.URL) string { return html.EscapeString(u.String()) }

// SiteURL renders u the way browsers do, with "/" for an empty path of a
// hierarchical URL.
func SiteURL(u *url.URL) string {
	if u.Path == "" && u.Opaque == "" && u.Host != "" {
		root := *u
		root.Path = "/"
		return root.String()
	}
	return u.String()
}
