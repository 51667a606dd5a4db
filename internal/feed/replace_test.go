package feed

import (
	"html"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplacer_Replace(t *testing.T) {
	tests := []struct {
		name   string
		site   string
		base   string
		prefix string
		input  string
		want   string
	}{
		{
			name:  "single",
			site:  "http://example.com/podcast",
			base:  "http://foo.org",
			input: `<enclosure url="https://example.com/podcast.mp3" type="audio/mpeg" length="96950025"/>`,
			want:  `<enclosure url="http://foo.org/podcast.mp3?ref=https%3A%2F%2Fexample.com%2Fpodcast.mp3" type="audio/mpeg" length="96950025"/>`,
		},
		{
			name: "multiple",
			site: "http://example.com/podcast",
			base: "https://example.org",
			input: `
<enclosure url="https://example.com/podcast1.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="http://example.com/podcast2.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="https://foo.com/some/podcast3.mp3?bla=blub123" type="audio/mpeg" length="96950025"></enclosure>
<enclosure url="ftp://example.com/fake_podcast.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="example.com/podcast4.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="lol" type="audio/mpeg" length="96950025"/>
<enclosure />
`,
			want: `
<enclosure url="https://example.org/podcast1.mp3?ref=https%3A%2F%2Fexample.com%2Fpodcast1.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="https://example.org/podcast2.mp3?ref=http%3A%2F%2Fexample.com%2Fpodcast2.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="https://example.org/some/podcast3.mp3?ref=https%3A%2F%2Ffoo.com%2Fsome%2Fpodcast3.mp3%3Fbla%3Dblub123" type="audio/mpeg" length="96950025"></enclosure>
<enclosure url="ftp://example.com/fake_podcast.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="example.com/podcast4.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="lol" type="audio/mpeg" length="96950025"/>
<enclosure />
`,
		},
		{
			name:   "with prefix",
			site:   "http://example.com/podcast",
			base:   "https://example.org",
			prefix: "/r",
			input: `
<enclosure url="https://example.com/podcast1.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="https://example.org/podcast3.mp3" type="audio/mpeg" length="96950025"/>
<enclosure />
`,
			want: `
<enclosure url="https://example.org/r/podcast1.mp3?ref=https%3A%2F%2Fexample.com%2Fpodcast1.mp3" type="audio/mpeg" length="96950025"/>
<enclosure url="https://example.org/r/podcast3.mp3?ref=https%3A%2F%2Fexample.org%2Fpodcast3.mp3" type="audio/mpeg" length="96950025"/>
<enclosure />
`,
		},
		{
			name:   "prefix of another enclosure",
			site:   "https://example.org",
			base:   "https://fw.example",
			prefix: "/r",
			input: `
<enclosure url="https://x.com/a.mp3"/>
<enclosure url="https://x.com/a.mp3?v=1&amp;w=2"/>
`,
			want: `
<enclosure url="https://fw.example/r/a.mp3?ref=https%3A%2F%2Fx.com%2Fa.mp3"/>
<enclosure url="https://fw.example/r/a.mp3?ref=https%3A%2F%2Fx.com%2Fa.mp3%3Fv%3D1%26amp%3Bw%3D2"/>
`,
		},
		{
			name:   "same url twice",
			site:   "https://example.org",
			base:   "https://fw.example",
			prefix: "/r",
			input: `
<enclosure url="https://x.com/a.mp3" type="audio/mpeg"/>
<media:content url="https://x.com/a.mp3" type="audio/mpeg"/>
`,
			want: `
<enclosure url="https://fw.example/r/a.mp3?ref=https%3A%2F%2Fx.com%2Fa.mp3" type="audio/mpeg"/>
<media:content url="https://fw.example/r/a.mp3?ref=https%3A%2F%2Fx.com%2Fa.mp3" type="audio/mpeg"/>
`,
		},
		{
			name:  "link",
			site:  "https://example.org",
			base:  "https://example.org",
			input: "<link>https://redcircle.com/shows/open-podcast</link>",
			want:  "<link>https://example.org/</link>",
		},
		{
			name:  "nothing to do",
			site:  "https://example.org",
			base:  "https://example.org",
			input: `<rss><channel><title>x</title></channel></rss>`,
			want:  `<rss><channel><title>x</title></channel></rss>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReplacer(mustParse(t, tt.site), mustParse(t, tt.base),
				tt.prefix)
			assert.Equal(t, tt.want, r.Replace(tt.input))
		})
	}
}

func TestReplacer_Replace_feed(t *testing.T) {
	r := NewReplacer(mustParse(t, "https://openpodcast.dev"),
		mustParse(t, "https://fwd.example.org"), "/r")
	got := r.Replace(testFeed)

	assert.Equal(t, 4, strings.Count(got, "<link>https://openpodcast.dev/</link>"))
	assert.NotContains(t, got, "redcircle.com/shows")
	assert.Contains(t, got,
		`url="https://fwd.example.org/r/episodes/ep2.mp3?ref=https%3A%2F%2Fcdn.example.com%2Fepisodes%2Fep2.mp3%3Fsource%3Dfeed%26amp%3Bv%3D2"`)
	assert.Contains(t, got,
		`url="https://fwd.example.org/r/episodes/ep1.aac?ref=https%3A%2F%2Fcdn.example.com%2Fepisodes%2Fep1.aac"`)
	assert.Contains(t, got,
		`url="https://stream.redcircle.com/episodes/trailer/stream.link"`)

	for _, s := range ExtractEnclosures(testFeed) {
		if strings.HasSuffix(s, ".link") {
			continue
		}
		assert.NotContains(t, got, `url="`+s+`"`)
	}
}

func TestReplacer_Mapping(t *testing.T) {
	r := NewReplacer(mustParse(t, "https://example.org"),
		mustParse(t, "https://example.org"), "/r")

	m := r.Mapping(testFeed)
	require.Equal(t, 2, m.Len())

	var keys []string
	for from, to := range m.All() {
		keys = append(keys, from)
		assert.True(t, strings.HasPrefix(to, "https://example.org/r/episodes/"), to)
	}
	assert.Equal(t, []string{
		"https://cdn.example.com/episodes/ep2.mp3?source=feed&amp;v=2",
		"https://cdn.example.com/episodes/ep1.aac",
	}, keys)

	output := m.Apply(testFeed)
	assert.Equal(t, output, m.Apply(output))
}

func TestReplacer_Mapping_resolvesBack(t *testing.T) {
	r := NewReplacer(mustParse(t, "https://example.org"),
		mustParse(t, "https://fw.example"), "/r")
	document := `
<enclosure url="https://x.com/a.mp3"/>
<enclosure url="https://x.com/a.mp3?v=1&amp;w=2"/>
<enclosure url="https://x.com/a.mp3?v=1"/>
`
	m := r.Mapping(document)
	require.Equal(t, 3, m.Len())

	for from, to := range m.All() {
		forward := mustParse(t, html.UnescapeString(to))
		original, err := Resolve(forward.Path, forward.String(), "/r")
		require.NoError(t, err)
		assert.Equal(t, from, original.String())

		want, ok := m.Get(from)
		require.True(t, ok)
		assert.Contains(t, r.Replace(document), `url="`+want+`"`)
	}
}

func TestMapping_Apply_longestFirst(t *testing.T) {
	m := NewMapping()
	m.Set("a", "1")
	m.Set("ab", "2")
	m.Set("abc", "3")
	assert.Equal(t, "3 2 1 1x", m.Apply("abc ab a ax"))
	assert.Equal(t, "abc", NewMapping().Apply("abc"))
}

func TestMapping(t *testing.T) {
	m := NewMapping()
	m.Set("b", "1")
	m.Set("a", "2")
	m.Set("b", "3")

	assert.Equal(t, 2, m.Len())
	to, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "3", to)
	_, ok = m.Get("c")
	assert.False(t, ok)

	var pairs [][2]string
	for from, to := range m.All() {
		pairs = append(pairs, [2]string{from, to})
	}
	assert.Equal(t, [][2]string{{"b", "3"}, {"a", "2"}}, pairs)
	assert.Equal(t, "3 2 3", m.Apply("b a b"))
}
