package fetcher // import "openpodcast.dev/forwarder/internal/reader/fetcher"

import (
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"
)

// Reasons of failed requests.
const (
	ReasonTLS             = "tls_error"
	ReasonTimeout         = "network_timeout"
	ReasonNetwork         = "network_operation"
	ReasonEmptyResponse   = "empty_response"
	ReasonClient          = "client_error"
	ReasonTooLarge        = "response_too_large"
	ReasonTooManyRequests = "too_many_requests"
)

// ClientError is a failed request, which got no HTTP response.
type ClientError struct {
	Reason string
	Err    error
}

func NewClientError(err error) *ClientError {
	return &ClientError{Reason: clientErrReason(err), Err: err}
}

func (self *ClientError) Error() string {
	return fmt.Sprintf("reader/fetcher: http client error (%s): %v",
		self.Reason, self.Err)
}

func (self *ClientError) Unwrap() error { return self.Err }

func clientErrReason(err error) string {
	switch {
	case sslError(err):
		return ReasonTLS
	case os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, io.EOF):
		return ReasonEmptyResponse
	case networkError(err):
		return ReasonNetwork
	}
	return ReasonClient
}

// Reason returns the short reason of err, suitable as a metric label, or
// empty string if err isn't a request failure.
func Reason(err error) string {
	if clientErr, ok := errors.AsType[*ClientError](err); ok {
		return clientErr.Reason
	} else if _, ok := errors.AsType[*ErrTooManyRequests](err); ok {
		return ReasonTooManyRequests
	} else if _, ok := errors.AsType[*ErrBodyTooLarge](err); ok {
		return ReasonTooLarge
	}
	return ""
}

func networkError(err error) bool {
	if _, ok := errors.AsType[*url.Error](err); ok {
		return true
	}
	_, ok := errors.AsType[*net.OpError](err)
	return ok
}

func sslError(err error) bool {
	var certErr *x509.UnknownAuthorityError
	if errors.As(err, &certErr) {
		return true
	}

	var hostErr *x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}

	var algErr *x509.InsecureAlgorithmError
	return errors.As(err, &algErr)
}

type ErrBodyTooLarge struct {
	Limit int64
}

func (self *ErrBodyTooLarge) Error() string {
	return fmt.Sprintf("reader/fetcher: response body too large: %d bytes",
		self.Limit)
}

type ErrTooManyRequests struct {
	hostname   string
	retryAfter time.Time
}

var _ error = (*ErrTooManyRequests)(nil)

func NewErrTooManyRequests(hostname string, retryAfter time.Time,
) *ErrTooManyRequests {
	return &ErrTooManyRequests{
		hostname:   hostname,
		retryAfter: retryAfter,
	}
}

func (self *ErrTooManyRequests) Error() string {
	return fmt.Sprintf(
		"reader/fetcher: host %q rate limited, retry in %s",
		self.hostname, time.Until(self.RetryAfter()).Round(time.Second))
}

func (self *ErrTooManyRequests) Hostname() string { return self.hostname }

func (self *ErrTooManyRequests) RetryAfter() time.Time {
	return self.retryAfter
}
