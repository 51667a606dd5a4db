// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package feed // import "openpodcast.dev/forwarder/internal/feed"

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

// Resolve recovers the original URL from an indirection request. requestPath
// must start with requiredPrefix, unless it's empty, and look like an audio
// file. requestURL is the full request URL, which may still carry HTML
// entities.
//
// Returned errors are always *Error.
func Resolve(requestPath, requestURL, requiredPrefix string) (*url.URL, error) {
	if requiredPrefix != "" && !strings.HasPrefix(requestPath, requiredPrefix) {
		return nil, NewError(ErrInvalidPrefix, fmt.Sprintf(
			"Forward URL does not start with %q prefix", requiredPrefix), nil)
	}

	if !AudioPath(requestPath) {
		return nil, NewError(ErrInvalidAudioFormat,
			"Unknown audio file format: "+requestPath, nil)
	}

	u, err := url.Parse(html.UnescapeString(requestURL))
	if err != nil {
		return nil, NewError(ErrMalformedReference,
			"Unable to parse forward URL", err)
	}

	values, err := url.ParseQuery(u.RawQuery)
	refs, ok := values[RefParam]
	switch {
	case ok:
	case err != nil:
		return nil, NewError(ErrMalformedReference,
			"Unable to parse forward URL query", err)
	default:
		return nil, NewError(ErrMissingReference,
			"Reference URL not found in forward URL", nil)
	}

	decoded, err := url.PathUnescape(refs[0])
	if err != nil {
		return nil, NewError(ErrMalformedReference,
			"Unable to decode reference URL", err)
	}

	target, err := url.Parse(decoded)
	if err != nil {
		return nil, NewError(ErrMalformedReference,
			"Unable to parse reference URL", err)
	} else if !target.IsAbs() {
		return nil, NewError(ErrMalformedReference,
			"Reference URL is not absolute: "+decoded, nil)
	}
	return target, nil
}
