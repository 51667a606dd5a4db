// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package posthog // import "openpodcast.dev/forwarder/internal/integration/posthog"

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
	Name = "posthog"

	defaultClientTimeout = 10 * time.Second
)

type capturePayload struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Properties map[string]any `json:"properties"`
}

type Client struct {
	wrapped     *http.Client
	apiEndpoint string
	apiKey      string
}

var _ analytics.Sink = (*Client)(nil)

func NewClient(apiKey, apiEndpoint string) *Client {
	return &Client{
		wrapped:     &http.Client{Timeout: defaultClientTimeout},
		apiEndpoint: apiEndpoint,
		apiKey:      apiKey,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Send(ctx context.Context, event *analytics.Event) error {
	b, err := json.Marshal(c.payload(event))
	if err != nil {
		return fmt.Errorf("integration/posthog: unable to encode request body: %w",
			err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiEndpoint,
		bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("integration/posthog: create POST request to %q: %w",
			c.apiEndpoint, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Forwarder/"+version.Version)

	resp, err := c.wrapped.Do(req)
	if err != nil {
		return fmt.Errorf("integration/posthog: unable to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf(
			"integration/posthog: unable to capture event: status=%d body=%s",
			resp.StatusCode, body)
	}
	return nil
}

func (c *Client) payload(event *analytics.Event) *capturePayload {
	props := make(map[string]any, len(event.Headers)+7)
	for _, h := range event.Headers {
		props[h.Name] = h.Value
	}

	props["distinct_id"] = event.Upstream
	props["client"] = event.Client
	props["is_bot"] = event.Bot
	props["country"] = event.Country
	props["path"] = event.Path
	if event.IP != "" {
		props["$ip"] = event.IP
	}
	if event.Download() {
		props["upstream"] = event.UpstreamRef
	}

	p := &capturePayload{
		APIKey:     c.apiKey,
		Event:      event.Kind,
		Properties: props,
	}
	if !event.Time.IsZero() {
		p.Timestamp = event.Time.UTC().Format(time.RFC3339Nano)
	}
	return p
}
