package analytics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"openpodcast.dev/forwarder/internal/http/request"
	"openpodcast.dev/forwarder/internal/useragent"
)

func TestKind(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		want   string
	}{
		{path: "/", prefix: "/r", want: KindFeed},
		{path: "", prefix: "/r", want: KindFeed},
		{path: "/r/podcast.mp3", prefix: "/r", want: KindDownload},
		{path: "/r", prefix: "/r", want: "/r"},
		{path: "/rss/x.mp3", prefix: "/r", want: "/rss/x.mp3"},
		{path: "/version", prefix: "/r", want: "/version"},
		{path: "/podcast.mp3", prefix: "", want: KindDownload},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.path, tt.prefix))
		})
	}
}

func TestNewEvent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/r/podcast.mp3?ref=https%3A%2F%2Fexample.com%2Fpodcast.mp3", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("User-Agent", "Overcast/3.0")
	r.Header.Set("CF-IPCountry", "DE")
	r.Header.Add("Accept", "audio/mpeg")
	r.Header.Add("Accept", "*/*")

	identity := useragent.Identity{Name: "Overcast"}
	event := NewEvent(r, KindDownload, "https://example.com/feed.xml",
		identity, "https://example.com/podcast.mp3")

	assert.Equal(t, KindDownload, event.Kind)
	assert.True(t, event.Download())
	assert.Equal(t, "https://example.com/feed.xml", event.Upstream)
	assert.Equal(t, "https://example.com/podcast.mp3", event.UpstreamRef)
	assert.Equal(t, "Overcast", event.Client)
	assert.False(t, event.Bot)
	assert.Equal(t, "/r/podcast.mp3", event.Path)
	assert.Equal(t, "Overcast/3.0", event.UserAgent)
	assert.Equal(t, "DE", event.Country)
	assert.Equal(t, "192.0.2.1", event.IP)
	assert.False(t, event.Time.IsZero())

	assert.Equal(t, []Header{
		{Name: "accept", Value: "audio/mpeg, */*"},
		{Name: "cf-ipcountry", Value: "DE"},
		{Name: "user-agent", Value: "Overcast/3.0"},
	}, event.Headers)
	assert.Equal(t,
		"accept: audio/mpeg, */*; cf-ipcountry: DE; user-agent: Overcast/3.0",
		event.HeaderString())
}

func TestNewEvent_ip(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(r))

	r = r.WithContext(request.WithClientIP(r.Context(), "198.51.100.7"))
	assert.Equal(t, "198.51.100.7", clientIP(r))

	r.Header.Set("X-Real-IP", " 203.0.113.9 ")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestEvent_HeaderString_empty(t *testing.T) {
	var event Event
	assert.Empty(t, event.HeaderString())
}
