package feed // import "openpodcast.dev/forwarder/internal/feed"

import (
	"cmp"
	"iter"
	"slices"
	"strings"
)

// Mapping is an ordered set of literal replacements. Keys are unique, the
// last Set of a key wins, but the key keeps its first position.
type Mapping struct {
	keys   []string
	values map[string]string
}

func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]string)}
}

func (self *Mapping) Set(from, to string) {
	if _, ok := self.values[from]; !ok {
		self.keys = append(self.keys, from)
	}
	self.values[from] = to
}

func (self *Mapping) Get(from string) (string, bool) {
	to, ok := self.values[from]
	return to, ok
}

func (self *Mapping) Len() int { return len(self.keys) }

// All iterates over replacements in insertion order.
func (self *Mapping) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range self.keys {
			if !yield(k, self.values[k]) {
				return
			}
		}
	}
}

// Apply replaces every occurrence of every key in document in a single pass.
// At any position the longest matching key wins, so a key, which is a prefix
// of another one, never breaks it. Replaced text isn't scanned again.
func (self *Mapping) Apply(document string) string {
	if len(self.keys) == 0 {
		return document
	}

	keys := slices.Clone(self.keys)
	slices.SortStableFunc(keys, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})

	oldnew := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		oldnew = append(oldnew, k, self.values[k])
	}
	return strings.NewReplacer(oldnew...).Replace(document)
}
