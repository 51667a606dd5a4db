// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package fetcher // import "openpodcast.dev/forwarder/internal/reader/fetcher"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/logging"
)

func NewResponseHandler(httpResponse *http.Response, clientErr error,
) *ResponseHandler {
	r := &ResponseHandler{
		httpResponse: httpResponse,
		maxBodySize:  config.Opts.HTTPClientMaxBodySize(),
	}
	if clientErr != nil {
		r.clientErr = NewClientError(clientErr)
	}
	return r
}

type ResponseHandler struct {
	httpResponse *http.Response
	clientErr    error

	maxBodySize int64
}

func (r *ResponseHandler) Status() string  { return r.httpResponse.Status }
func (r *ResponseHandler) StatusCode() int { return r.httpResponse.StatusCode }

func (r *ResponseHandler) Header(key string) string {
	return r.httpResponse.Header.Get(key)
}

// Headers returns all headers of the response.
func (r *ResponseHandler) Headers() http.Header {
	return r.httpResponse.Header
}

// Err returns the error of a request, which got no response.
func (r *ResponseHandler) Err() error { return r.clientErr }

func (r *ResponseHandler) URL() *url.URL { return r.httpResponse.Request.URL }

func (r *ResponseHandler) EffectiveURL() string { return r.URL().String() }

func (r *ResponseHandler) ContentType() string {
	return r.httpResponse.Header.Get("Content-Type")
}

func (r *ResponseHandler) ETag() string {
	// Ignore caching headers for feeds that do not want any cache.
	if r.httpResponse.Header.Get("Expires") == "0" {
		return ""
	}
	return r.httpResponse.Header.Get("ETag")
}

// CheckStatus returns an error for status codes 400 and above.
func (r *ResponseHandler) CheckStatus() error {
	statusCode := r.StatusCode()
	switch {
	case statusCode < 400:
		return nil
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %d %s",
			NewErrTooManyRequests(r.URL().Hostname(),
				time.Now().Add(r.parseRetryDelay())),
			statusCode, r.bodyStatusText())
	}
	return fmt.Errorf("reader/fetcher: unexpected status code: %d %s",
		statusCode, r.bodyStatusText())
}

func (r *ResponseHandler) parseRetryDelay() time.Duration {
	retryAfter := r.Header("Retry-After")
	if retryAfter == "" {
		return 0
	}

	// First, try to parse as an integer (number of seconds)
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(max(0, seconds)) * time.Second
	}

	// If not an integer, try to parse as an HTTP-date
	t, err := http.ParseTime(retryAfter)
	if err != nil || t.Before(time.Now()) {
		return 0
	}
	return time.Until(t)
}

func (r *ResponseHandler) IsModified(lastEtagValue string) bool {
	if r.httpResponse.StatusCode == http.StatusNotModified {
		return false
	}

	if etag := r.ETag(); etag != "" {
		return etag != lastEtagValue
	}
	return true
}

func (r *ResponseHandler) Close() {
	if r.Err() != nil {
		return
	}
	BodyClose(r.httpResponse.Body)
}

// maxPostHandlerReadBytes is the max number of Request.Body bytes not
// consumed by a handler that the server will read from the client
// in order to keep a connection alive. If there are more bytes
// than this, the server, to be paranoid, instead sends a
// "Connection close" response.
//
// See: net/http/server.go
const maxPostHandlerReadBytes = 256 << 10

// https://github.com/golang/go/issues/60240
func BodyClose(r io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, r, maxPostHandlerReadBytes+1)
	r.Close()
}

func (r *ResponseHandler) Body() io.ReadCloser {
	logging.FromContext(r.httpResponse.Request.Context()).Debug(
		"Request response",
		slog.String("effective_url", r.EffectiveURL()),
		slog.String("content_length", r.httpResponse.Header.Get("Content-Length")),
		slog.String("content_encoding",
			r.httpResponse.Header.Get("Content-Encoding")),
		slog.String("content_type", r.ContentType()))
	return http.MaxBytesReader(nil, r.httpResponse.Body, r.maxBodySize)
}

// ReadBody reads the whole body, up to the configured limit. An empty body is
// not an error.
func (r *ResponseHandler) ReadBody() ([]byte, error) {
	var buffer bytes.Buffer
	if err := r.WriteBodyTo(&buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (r *ResponseHandler) WriteBodyTo(w io.Writer) error {
	_, err := io.Copy(w, r.Body())
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	if maxBytesErr, ok := errors.AsType[*http.MaxBytesError](err); ok {
		return &ErrBodyTooLarge{Limit: maxBytesErr.Limit}
	}
	return fmt.Errorf("reader/fetcher: unable to read response body: %w", err)
}

func (r *ResponseHandler) bodyStatusText() string {
	statusText := http.StatusText(r.StatusCode())
	var b bytes.Buffer
	_, _ = io.CopyN(&b, r.httpResponse.Body, 1024)
	if s, _, _ := strings.Cut(b.String(), "\n"); s != "" {
		switch statusText {
		case "":
			return s
		default:
			return statusText + ": " + s
		}
	}
	return statusText
}
