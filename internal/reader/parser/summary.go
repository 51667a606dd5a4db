// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package parser // import "openpodcast.dev/forwarder/internal/reader/parser"

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dsh2dsh/gofeed/v2/options"
	"github.com/dsh2dsh/gofeed/v2/rss"
)

// Summary is a short description of a podcast feed.
type Summary struct {
	Title       string
	SiteURL     string
	Description string
	Items       int
	Enclosures  []Enclosure
}

// Enclosure is a media file of a feed item.
type Enclosure struct {
	Item     string
	URL      string
	MimeType string
	Size     int64
}

// ParseSummary parses RSS document from r. Unknown elements are skipped.
func ParseSummary(r io.Reader) (*Summary, error) {
	parsed, err := rss.NewParser().Parse(r,
		options.WithSkipUnknownElements(true))
	if err != nil {
		return nil, fmt.Errorf("reader/parser: parse RSS feed: %w", err)
	}

	var p rssSummary
	return p.Summary(parsed), nil
}

type rssSummary struct {
	rss     *rss.Feed
	summary *Summary
}

func (self *rssSummary) Summary(rssFeed *rss.Feed) *Summary {
	self.rss = rssFeed
	self.summary = &Summary{
		Title:       self.rss.GetTitle(),
		SiteURL:     self.rss.Link(),
		Description: self.rss.GetDescription(),
		Items:       len(self.rss.Items),
	}
	self.summary.Enclosures = self.enclosures()
	return self.summary
}

func (self *rssSummary) enclosures() (enclosures []Enclosure) {
	for _, item := range self.rss.Items {
		title := item.GetTitle()
		for rssEnc := range item.AllEnclosures() {
			if rssEnc.URL == "" {
				continue
			}
			enc := Enclosure{Item: title, URL: rssEnc.URL, MimeType: rssEnc.Type}
			if s := rssEnc.Length; s != "" {
				if size, err := strconv.ParseInt(s, 10, 64); err == nil {
					enc.Size = size
				}
			}
			enclosures = append(enclosures, enc)
		}
	}
	return enclosures
}
