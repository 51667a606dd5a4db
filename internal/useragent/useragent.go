// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package useragent // import "openpodcast.dev/forwarder/internal/useragent"

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"go.yaml.in/yaml/v4"
	"golang.org/x/text/cases"
)

// Unknown is the canonical name of clients no pattern matches.
const Unknown = "unknown"

//go:embed useragents.yaml
var builtinPatterns []byte

var defaultTable = sync.OnceValue(func() *Table {
	patterns, err := ParsePatterns(builtinPatterns)
	if err != nil {
		panic(err)
	}
	return New(patterns...)
})

// Default returns the table of known podcast clients.
func Default() *Table { return defaultTable() }

// Classify identifies userAgent using the default table.
func Classify(userAgent string) Identity { return Default().Classify(userAgent) }

// Identity is a classified client.
type Identity struct {
	Name string
	Bot  bool
}

func UnknownIdentity() Identity { return Identity{Name: Unknown} }

// Known reports whether some pattern matched.
func (self Identity) Known() bool { return self.Name != Unknown }

type Pattern struct {
	Pattern string `yaml:"pattern" validate:"required"`
	Name    string `yaml:"name" validate:"required"`
}

// ParsePatterns decodes a YAML list of patterns, keeping their order.
func ParsePatterns(b []byte) ([]Pattern, error) {
	var patterns []Pattern
	if err := yaml.Unmarshal(b, &patterns); err != nil {
		return nil, fmt.Errorf("useragent: unable to decode patterns: %w", err)
	}

	for i := range patterns {
		p := &patterns[i]
		if p.Pattern == "" || p.Name == "" {
			return nil, fmt.Errorf(
				"useragent: pattern #%d: both pattern and name required", i)
		}
	}
	return patterns, nil
}

// Table is an immutable ordered list of patterns. It's safe for concurrent
// use.
type Table struct {
	entries []entry
}

type entry struct {
	pattern  string
	identity Identity
}

func New(patterns ...Pattern) *Table {
	self := &Table{entries: make([]entry, len(patterns))}
	fold := cases.Fold()
	for i, p := range patterns {
		self.entries[i] = entry{
			pattern: p.Pattern,
			identity: Identity{
				Name: p.Name,
				Bot:  strings.Contains(fold.String(p.Name), "bot"),
			},
		}
	}
	return self
}

// With returns a new table, which checks extra patterns before patterns of
// this table.
func (self *Table) With(extra ...Pattern) *Table {
	if len(extra) == 0 {
		return self
	}
	t := New(extra...)
	t.entries = append(t.entries, self.entries...)
	return t
}

func (self *Table) Len() int { return len(self.entries) }

// Classify returns identity of the first pattern userAgent contains.
func (self *Table) Classify(userAgent string) Identity {
	if userAgent == "" {
		return UnknownIdentity()
	}

	for i := range self.entries {
		if e := &self.entries[i]; strings.Contains(userAgent, e.pattern) {
			return e.identity
		}
	}
	return UnknownIdentity()
}
