// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cookie // import "openpodcast.dev/forwarder/internal/http/cookie"

import "net/http"

// Cookie names.
const (
	CookieForwarder = "forwarder"

	forwarderValue = "bar"
)

// NewForwarder returns the marker cookie, set on every feed and download
// response. It's usable in third-party contexts, so it's Secure over HTTPS.
func NewForwarder(https bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieForwarder,
		Value:    forwarderValue,
		Secure:   https,
		SameSite: http.SameSiteNoneMode,
	}
}
