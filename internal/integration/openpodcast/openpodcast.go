package openpodcast // import "openpodcast.dev/forwarder/internal/integration/openpodcast"

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"openpodcast.dev/forwarder/internal/analytics"
	"openpodcast.dev/forwarder/internal/version"
)

const (
	Name = "openpodcast"

	defaultClientTimeout = 10 * time.Second
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type eventPayload struct {
	Kind        string `json:"kind"`
	Upstream    string `json:"upstream"`
	UpstreamRef string `json:"upstream-ref"`
	Client      string `json:"client"`
	IsBot       bool   `json:"is-bot"`
	Country     string `json:"country"`
	Path        string `json:"path"`
	Headers     string `json:"headers"`
	UserAgent   string `json:"user-agent"`
	IP          string `json:"ip"`
}

func newEventPayload(event *analytics.Event) *eventPayload {
	return &eventPayload{
		Kind:        event.Kind,
		Upstream:    event.Upstream,
		UpstreamRef: event.UpstreamRef,
		Client:      event.Client,
		IsBot:       event.Bot,
		Country:     event.Country,
		Path:        event.Path,
		Headers:     event.HeaderString(),
		UserAgent:   event.UserAgent,
		IP:          event.IP,
	}
}

type Client struct {
	wrapped     *http.Client
	apiEndpoint string
	apiToken    string
}

var _ analytics.Sink = (*Client)(nil)

func NewClient(apiToken, apiEndpoint string) *Client {
	return &Client{
		wrapped:     &http.Client{Timeout: defaultClientTimeout},
		apiEndpoint: apiEndpoint,
		apiToken:    apiToken,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Send(ctx context.Context, event *analytics.Event) error {
	b, err := json.Marshal(newEventPayload(event))
	if err != nil {
		return fmt.Errorf(
			"integration/openpodcast: unable to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiEndpoint,
		bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("integration/openpodcast: create POST request to %q: %w",
			c.apiEndpoint, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Forwarder/"+version.Version)

	resp, err := c.wrapped.Do(req)
	if err != nil {
		return fmt.Errorf("integration/openpodcast: unable to send request: %w",
			err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	b, err = io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("integration/openpodcast: failed to read response: %w",
			err)
	}

	var errResponse errorResponse
	if err := json.Unmarshal(b, &errResponse); err != nil ||
		(errResponse.Error == "" && errResponse.Message == "") {
		return fmt.Errorf(
			"integration/openpodcast: failed to send event: status=%d body=%s",
			resp.StatusCode, b)
	}
	return fmt.Errorf(
		"integration/openpodcast: failed to send event: status=%d error=%s %s",
		resp.StatusCode, errResponse.Error, errResponse.Message)
}
