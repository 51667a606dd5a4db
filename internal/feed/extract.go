// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package feed // import "openpodcast.dev/forwarder/internal/feed"

import "regexp"

var (
	enclosureRegex = regexp.MustCompile(
		`<enclosure.*url=("|')(?P<url>.*?)("|')`)
	linkRegex = regexp.MustCompile(`<link>(?P<url>.*?)</link>`)
)

// Origin tells where a [Candidate] was found.
type Origin int

const (
	OriginEnclosure Origin = iota
	OriginLink
)

func (self Origin) String() string {
	if self == OriginLink {
		return "link"
	}
	return "enclosure"
}

// Candidate is a raw, un-decoded URL string found in feed markup.
type Candidate struct {
	URL    string
	Origin Origin
	offset int
}

// ExtractEnclosures returns url attributes of enclosure tags in document
// order.
func ExtractEnclosures(document string) []string {
	return extractGroup(enclosureRegex, document)
}

// ExtractLinks returns bodies of link elements in document order.
func ExtractLinks(document string) []string {
	return extractGroup(linkRegex, document)
}

func extractGroup(re *regexp.Regexp, document string) []string {
	idx := re.SubexpIndex("url")
	matches := re.FindAllStringSubmatch(document, -1)
	urls := make([]string, len(matches))
	for i, m := range matches {
		urls[i] = m[idx]
	}
	return urls
}

// Extract returns enclosure and link candidates of document, ordered by
// their position in it.
func Extract(document string) []Candidate {
	enclosures := extractCandidates(enclosureRegex, document, OriginEnclosure)
	links := extractCandidates(linkRegex, document, OriginLink)

	candidates := make([]Candidate, 0, len(enclosures)+len(links))
	for len(enclosures) > 0 && len(links) > 0 {
		if enclosures[0].offset <= links[0].offset {
			candidates = append(candidates, enclosures[0])
			enclosures = enclosures[1:]
		} else {
			candidates = append(candidates, links[0])
			links = links[1:]
		}
	}
	candidates = append(candidates, enclosures...)
	return append(candidates, links...)
}

func extractCandidates(re *regexp.Regexp, document string, origin Origin,
) []Candidate {
	idx := re.SubexpIndex("url")
	matches := re.FindAllStringSubmatchIndex(document, -1)
	candidates := make([]Candidate, len(matches))
	for i, m := range matches {
		start, end := m[2*idx], m[2*idx+1]
		candidates[i] = Candidate{
			URL:    document[start:end],
			Origin: origin,
			offset: start,
		}
	}
	return candidates
}
