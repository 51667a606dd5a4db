// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package feed // import "openpodcast.dev/forwarder/internal/feed"

import (
	"html"
	"net/url"
)

// Replacer rewrites a feed document: enclosures of audio files go through
// the indirection endpoint and every link points to the site.
type Replacer struct {
	base   *url.URL
	prefix string
	link   string
}

func NewReplacer(site, base *url.URL, prefix string) *Replacer {
	return &Replacer{
		base:   base,
		prefix: prefix,
		link:   "<link>" + html.EscapeString(SiteURL(site)) + "</link>",
	}
}

// Mapping returns replacements of forwardable enclosure URLs of document,
// keyed by their literal text.
func (self *Replacer) Mapping(document string) *Mapping {
	m := NewMapping()
	for _, s := range ExtractEnclosures(document) {
		u, err := url.Parse(s)
		if err != nil || !Forwardable(u) {
			continue
		}
		m.Set(s, EscapeURL(BuildForward(u, self.base, self.prefix)))
	}
	return m
}

// Replace returns rewritten document. It never fails, anything it can't
// parse stays as is.
func (self *Replacer) Replace(document string) string {
	document = self.Mapping(document).Apply(document)
	return linkRegex.ReplaceAllLiteralString(document, self.link)
}
