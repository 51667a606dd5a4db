// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package config // import "openpodcast.dev/forwarder/internal/config"

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"openpodcast.dev/forwarder/internal/useragent"
	"openpodcast.dev/forwarder/internal/version"
)

const (
	defaultForwardPrefix   = "/r"
	defaultPostHogEndpoint = "https://app.posthog.com/capture/"
)

var defaultUA = "Forwarder/" + version.Version + " (+https://openpodcast.dev)"

// Option contains a key to value map of a single option. It may be used to
// output debug strings.
type Option struct {
	Key   string
	Value any
}

// Options contains configuration options.
type Options struct {
	HostLimits map[string]HostLimits `yaml:"host_limits" validate:"dive,keys,required,endkeys,required"`
	UserAgents []useragent.Pattern    `yaml:"user_agents" validate:"dive"`

	env EnvOptions

	upstreamURL    *url.URL
	websiteURL     *url.URL
	rootURL        string
	basePath       string
	forwardPrefix  string
	trustedProxies map[string]struct{}
	userAgents     *useragent.Table
}

type HostLimits struct {
	Connections int64   `yaml:"connections" validate:"omitempty,min=0"`
	Rate        float64 `yaml:"rate" validate:"omitempty,min=0"`
}

func (self *HostLimits) withDefaults(connections int64, rate float64,
) HostLimits {
	limits := *self
	if limits.Connections == 0 {
		limits.Connections = connections
	}
	if limits.Rate == 0 {
		limits.Rate = rate
	}
	return limits
}

type EnvOptions struct {
	UpstreamFeedURL          string   `env:"UPSTREAM_FEED_URL" validate:"required,url"`
	WebsiteURL               string   `env:"WEBSITE_URL" validate:"required,url"`
	BaseURL                  string   `env:"BASE_URL" validate:"omitempty,url"`
	ForwardPrefix            string   `env:"FORWARD_PREFIX" validate:"required,startswith=/"`
	FeedCacheTTL             int      `env:"FEED_CACHE_TTL" validate:"min=0"`
	PostHogAPIKey            string   `env:"POSTHOG_API_KEY"`
	PostHogAPIKeyFile        *string  `env:"POSTHOG_API_KEY_FILE,file"`
	PostHogAPIEndpoint       string   `env:"POSTHOG_API_ENDPOINT" validate:"required,url"`
	OpenPodcastAPIEndpoint   string   `env:"OPENPODCAST_API_ENDPOINT" validate:"omitempty,url"`
	OpenPodcastAPIKey        string   `env:"OPENPODCAST_API_KEY"`
	OpenPodcastAPIKeyFile    *string  `env:"OPENPODCAST_API_KEY_FILE,file"`
	AnalyticsFeedRequests    bool     `env:"ANALYTICS_FEED_REQUESTS"`
	AnalyticsWorkers         int      `env:"ANALYTICS_WORKERS" validate:"min=1"`
	AnalyticsQueueSize       int      `env:"ANALYTICS_QUEUE_SIZE" validate:"min=1"`
	AnalyticsTimeout         int      `env:"ANALYTICS_TIMEOUT" validate:"min=1"`
	Version                  string   `env:"VERSION"`
	DisableHSTS              bool     `env:"DISABLE_HSTS"`
	HTTPS                    bool     `env:"HTTPS"`
	LogFile                  string   `env:"LOG_FILE" validate:"required"`
	LogDateTime              bool     `env:"LOG_DATE_TIME"`
	LogFormat                string   `env:"LOG_FORMAT" validate:"required,oneof=auto human json text"`
	LogLevel                 string   `env:"LOG_LEVEL" validate:"required,oneof=debug info warning error"`
	Logging                  []Log    `envPrefix:"LOG" validate:"dive,required"`
	ListenAddr               string   `env:"LISTEN_ADDR" validate:"required,hostname|hostname_port"`
	Port                     string   `env:"PORT"`
	CertFile                 string   `env:"CERT_FILE" validate:"omitempty,filepath"`
	CertDomain               string   `env:"CERT_DOMAIN"`
	CertKeyFile              string   `env:"KEY_FILE" validate:"omitempty,filepath"`
	CertCache                string   `env:"CERT_CACHE" validate:"required_with=CertDomain"`
	HttpClientTimeout        int      `env:"HTTP_CLIENT_TIMEOUT" validate:"min=1"`
	HttpClientMaxBodySize    int64    `env:"HTTP_CLIENT_MAX_BODY_SIZE" validate:"min=1"`
	HttpClientProxyURL       *url.URL `env:"HTTP_CLIENT_PROXY"`
	HttpClientUserAgent      string   `env:"HTTP_CLIENT_USER_AGENT"`
	HttpServerTimeout        int      `env:"HTTP_SERVER_TIMEOUT" validate:"min=1"`
	HttpServerMaxConnections int      `env:"HTTP_SERVER_MAX_CONNECTIONS" validate:"min=0"`
	MetricsCollector         bool     `env:"METRICS_COLLECTOR"`
	MetricsAllowedNetworks   []string `env:"METRICS_ALLOWED_NETWORKS" validate:"dive,required,cidr"`
	MetricsUsername          string   `env:"METRICS_USERNAME"`
	MetricsUsernameFile      *string  `env:"METRICS_USERNAME_FILE,file"`
	MetricsPassword          string   `env:"METRICS_PASSWORD"`
	MetricsPasswordFile      *string  `env:"METRICS_PASSWORD_FILE,file"`
	ConnectionsPerServer     int64    `env:"CONNECTIONS_PER_SERVER" validate:"min=1"`
	RateLimitPerServer       float64  `env:"RATE_LIMIT_PER_SERVER" validate:"min=0"`
	TrustedProxies           []string `env:"TRUSTED_PROXIES" validate:"dive,required,ip"`
}

type Log struct {
	LogFile     string `env:"FILE" validate:"required"`
	LogDateTime bool   `env:"DATE_TIME"`
	LogFormat   string `env:"FORMAT" validate:"required,oneof=auto human json text"`
	LogLevel    string `env:"LEVEL" validate:"required,oneof=debug info warning error"`
}

// NewOptions returns Options with default values.
func NewOptions() *Options {
	return &Options{
		HostLimits: map[string]HostLimits{},

		env: EnvOptions{
			ForwardPrefix:          defaultForwardPrefix,
			PostHogAPIEndpoint:     defaultPostHogEndpoint,
			AnalyticsWorkers:       4,
			AnalyticsQueueSize:     256,
			AnalyticsTimeout:       10,
			LogFile:                "stderr",
			LogFormat:              "text",
			LogLevel:               "info",
			ListenAddr:             "127.0.0.1:8080",
			CertCache:              "/tmp/cert_cache",
			HttpClientTimeout:      20,
			HttpClientMaxBodySize:  15,
			HttpClientUserAgent:    defaultUA,
			HttpServerTimeout:      300,
			MetricsAllowedNetworks: []string{"127.0.0.1/8"},
			ConnectionsPerServer:   8,
			RateLimitPerServer:     10,
			TrustedProxies:         []string{"127.0.0.1"},
		},
	}
}

func (o *Options) init() (err error) {
	if o.env.Port != "" {
		o.env.ListenAddr = ":" + o.env.Port
	}

	if err := o.validate(); err != nil {
		return err
	}

	o.env.HttpClientMaxBodySize *= 1024 * 1024
	o.applyFileStrings()
	if o.env.OpenPodcastAPIEndpoint != "" && o.env.OpenPodcastAPIKey == "" {
		return errors.New(
			"config: OPENPODCAST_API_ENDPOINT is set, but OPENPODCAST_API_KEY is empty")
	}
	o.makeTrustedProxies()

	o.upstreamURL, err = parseHTTPURL("UPSTREAM_FEED_URL", o.env.UpstreamFeedURL)
	if err != nil {
		return err
	}

	o.websiteURL, err = url.Parse(o.env.WebsiteURL)
	if err != nil {
		return fmt.Errorf("config: invalid WEBSITE_URL: %w", err)
	}

	o.env.BaseURL, o.rootURL, o.basePath, err = parseBaseURL(o.env.BaseURL)
	if err != nil {
		return err
	}

	o.forwardPrefix = strings.TrimRight(o.env.ForwardPrefix, "/")
	o.userAgents = useragent.Default().With(o.UserAgents...)
	return nil
}

func (o *Options) validate() error {
	if err := Validator().Struct(o); err != nil {
		return fmt.Errorf("config: failed validate: %w", err)
	} else if err := Validator().Struct(&o.env); err != nil {
		return fmt.Errorf("config: failed validate: %w", err)
	}
	return nil
}

func (o *Options) applyFileStrings() {
	opts := []struct {
		From *string
		To   *string
	}{
		{o.env.MetricsPasswordFile, &o.env.MetricsPassword},
		{o.env.MetricsUsernameFile, &o.env.MetricsUsername},
		{o.env.OpenPodcastAPIKeyFile, &o.env.OpenPodcastAPIKey},
		{o.env.PostHogAPIKeyFile, &o.env.PostHogAPIKey},
	}
	for _, opt := range opts {
		if opt.From != nil {
			*opt.To = strings.TrimSpace(*opt.From)
		}
	}
}

func (o *Options) makeTrustedProxies() {
	o.trustedProxies = make(map[string]struct{}, len(o.env.TrustedProxies))
	for _, ip := range o.env.TrustedProxies {
		o.trustedProxies[ip] = struct{}{}
	}
}

// UpstreamFeedURL returns URL of the proxied feed.
func (o *Options) UpstreamFeedURL() *url.URL { return o.upstreamURL }

// WebsiteURL returns URL, which replaces every link of the feed.
func (o *Options) WebsiteURL() *url.URL { return o.websiteURL }

// HasBaseURL returns true if BASE_URL configured. Without it public URLs are
// derived from every request.
func (o *Options) HasBaseURL() bool { return o.env.BaseURL != "" }

// BaseURL returns the application base URL with path.
func (o *Options) BaseURL() string { return o.env.BaseURL }

// RootURL returns the base URL without path.
func (o *Options) RootURL() string { return o.rootURL }

// BasePath returns the application base path according to the base URL.
func (o *Options) BasePath() string { return o.basePath }

// ForwardPrefix returns path prefix of forward URLs, relative to the base
// path. It's empty when forward URLs have no prefix.
func (o *Options) ForwardPrefix() string { return o.forwardPrefix }

// FeedCacheTTL returns how long a fetched upstream feed is reused.
func (o *Options) FeedCacheTTL() time.Duration {
	return time.Duration(o.env.FeedCacheTTL) * time.Second
}

func (o *Options) PostHogAPIKey() string      { return o.env.PostHogAPIKey }
func (o *Options) PostHogAPIEndpoint() string { return o.env.PostHogAPIEndpoint }

// HasPostHog returns true if events should be sent to PostHog.
func (o *Options) HasPostHog() bool { return o.env.PostHogAPIKey != "" }

func (o *Options) OpenPodcastAPIEndpoint() string {
	return o.env.OpenPodcastAPIEndpoint
}

func (o *Options) OpenPodcastAPIKey() string { return o.env.OpenPodcastAPIKey }

// HasOpenPodcast returns true if events should be sent to OpenPodcast API.
func (o *Options) HasOpenPodcast() bool {
	return o.env.OpenPodcastAPIEndpoint != ""
}

// AnalyticsFeedRequests returns true if feed requests produce analytics
// events too, not only downloads.
func (o *Options) AnalyticsFeedRequests() bool {
	return o.env.AnalyticsFeedRequests
}

func (o *Options) AnalyticsWorkers() int   { return o.env.AnalyticsWorkers }
func (o *Options) AnalyticsQueueSize() int { return o.env.AnalyticsQueueSize }

// AnalyticsTimeout returns the time limit of a single analytics request.
func (o *Options) AnalyticsTimeout() time.Duration {
	return time.Duration(o.env.AnalyticsTimeout) * time.Second
}

// Version returns version reported by /version.
func (o *Options) Version() string {
	if o.env.Version != "" {
		return o.env.Version
	}
	return version.Version
}

func (o *Options) HTTPS() bool  { return o.env.HTTPS }
func (o *Options) EnableHTTPS() { o.env.HTTPS = true }

func (o *Options) LogFile() string { return o.env.LogFile }

// LogDateTime returns true if the date/time should be displayed in log
// messages.
func (o *Options) LogDateTime() bool { return o.env.LogDateTime }

// LogFormat returns the log format.
func (o *Options) LogFormat() string { return o.env.LogFormat }

// LogLevel returns the log level.
func (o *Options) LogLevel() string { return o.env.LogLevel }

// SetLogLevel sets the log level.
func (o *Options) SetLogLevel(level string) {
	o.env.LogLevel = level
	for i := range o.env.Logging {
		o.env.Logging[i].LogLevel = level
	}
}

// ListenAddr returns the listen address for the HTTP server.
func (o *Options) ListenAddr() string { return o.env.ListenAddr }

// CertFile returns the SSL certificate filename if any.
func (o *Options) CertFile() string { return o.env.CertFile }

// CertKeyFile returns the private key filename for custom SSL certificate.
func (o *Options) CertKeyFile() string { return o.env.CertKeyFile }

// CertDomain returns the domain to use for Let's Encrypt certificate.
func (o *Options) CertDomain() string { return o.env.CertDomain }

// CertCache returns the directory of Let's Encrypt certificates.
func (o *Options) CertCache() string { return o.env.CertCache }

// HasHSTS returns true if HTTP Strict Transport Security is enabled.
func (o *Options) HasHSTS() bool { return !o.env.DisableHSTS }

// HTTPClientTimeout returns the time limit in seconds before the HTTP client
// cancel the request.
func (o *Options) HTTPClientTimeout() time.Duration {
	return time.Duration(o.env.HttpClientTimeout) * time.Second
}

// HTTPClientMaxBodySize returns the number of bytes allowed for the HTTP client
// to transfer.
func (o *Options) HTTPClientMaxBodySize() int64 {
	return o.env.HttpClientMaxBodySize
}

// HTTPClientProxyURL returns the client HTTP proxy URL if configured.
func (o *Options) HTTPClientProxyURL() *url.URL {
	return o.env.HttpClientProxyURL
}

// HasHTTPClientProxyURLConfigured returns true if the client HTTP proxy URL if
// configured.
func (o *Options) HasHTTPClientProxyURLConfigured() bool {
	return o.env.HttpClientProxyURL != nil
}

// HTTPClientUserAgent returns the default User-Agent header of upstream
// requests.
func (o *Options) HTTPClientUserAgent() string {
	return o.env.HttpClientUserAgent
}

// HTTPServerTimeout returns the time limit in seconds before the HTTP server
// cancel the request.
func (o *Options) HTTPServerTimeout() time.Duration {
	return time.Duration(o.env.HttpServerTimeout) * time.Second
}

// HTTPServerMaxConnections returns the limit of concurrent connections. Zero
// means no limit.
func (o *Options) HTTPServerMaxConnections() int {
	return o.env.HttpServerMaxConnections
}

// HasMetricsCollector returns true if metrics collection is enabled.
func (o *Options) HasMetricsCollector() bool { return o.env.MetricsCollector }

// MetricsAllowedNetworks returns the list of networks allowed to connect to the
// metrics endpoint.
func (o *Options) MetricsAllowedNetworks() []string {
	return o.env.MetricsAllowedNetworks
}

func (o *Options) MetricsUsername() string { return o.env.MetricsUsername }
func (o *Options) MetricsPassword() string { return o.env.MetricsPassword }

func (o *Options) ConnectionsPerServer() int64 {
	return o.env.ConnectionsPerServer
}

func (o *Options) RateLimitPerServer() float64 {
	return o.env.RateLimitPerServer
}

func (o *Options) TrustedProxy(ip string) bool {
	_, ok := o.trustedProxies[ip]
	return ok
}

// UserAgentTable returns the client classification table: patterns from YAML
// config first, built-in patterns after them.
func (o *Options) UserAgentTable() *useragent.Table {
	if o.userAgents == nil {
		return useragent.Default()
	}
	return o.userAgents
}

func (o *Options) Logging() []Log {
	if len(o.env.Logging) == 0 {
		return []Log{{
			LogFile:     o.LogFile(),
			LogDateTime: o.LogDateTime(),
			LogFormat:   o.LogFormat(),
			LogLevel:    o.LogLevel(),
		}}
	}
	return slices.Clone(o.env.Logging)
}

// FindHostLimits returns limits of hostname or of its nearest parent domain,
// with global limits for everything not configured.
func (o *Options) FindHostLimits(hostname string) (found HostLimits) {
	for hostname != "" {
		if limits, ok := o.HostLimits[hostname]; ok {
			found = limits
			break
		}
		_, hostname, _ = strings.Cut(hostname, ".")
	}
	return found.withDefaults(o.ConnectionsPerServer(), o.RateLimitPerServer())
}

// SortedOptions returns options as a list of key value pairs, sorted by keys.
func (o *Options) SortedOptions(redactSecret bool) []Option {
	var clientProxyURLRedacted string
	if o.env.HttpClientProxyURL != nil {
		if redactSecret {
			clientProxyURLRedacted = o.env.HttpClientProxyURL.Redacted()
		} else {
			clientProxyURLRedacted = o.env.HttpClientProxyURL.String()
		}
	}

	keyValues := map[string]any{
		"ANALYTICS_FEED_REQUESTS":     o.AnalyticsFeedRequests(),
		"ANALYTICS_QUEUE_SIZE":        o.AnalyticsQueueSize(),
		"ANALYTICS_TIMEOUT":           o.env.AnalyticsTimeout,
		"ANALYTICS_WORKERS":           o.AnalyticsWorkers(),
		"BASE_PATH":                   o.BasePath(),
		"BASE_URL":                    o.BaseURL(),
		"CERT_CACHE":                  o.CertCache(),
		"CERT_DOMAIN":                 o.CertDomain(),
		"CERT_FILE":                   o.CertFile(),
		"CONNECTIONS_PER_SERVER":      o.ConnectionsPerServer(),
		"DISABLE_HSTS":                !o.HasHSTS(),
		"FEED_CACHE_TTL":              o.env.FeedCacheTTL,
		"FORWARD_PREFIX":              o.env.ForwardPrefix,
		"HTTPS":                       o.HTTPS(),
		"HTTP_CLIENT_MAX_BODY_SIZE":   o.HTTPClientMaxBodySize() / (1024 * 1024),
		"HTTP_CLIENT_PROXY":           clientProxyURLRedacted,
		"HTTP_CLIENT_TIMEOUT":         o.env.HttpClientTimeout,
		"HTTP_CLIENT_USER_AGENT":      o.HTTPClientUserAgent(),
		"HTTP_SERVER_MAX_CONNECTIONS": o.HTTPServerMaxConnections(),
		"HTTP_SERVER_TIMEOUT":         o.env.HttpServerTimeout,
		"KEY_FILE":                    o.CertKeyFile(),
		"LISTEN_ADDR":                 o.ListenAddr(),
		"LOG_DATE_TIME":               o.LogDateTime(),
		"LOG_FILE":                    o.LogFile(),
		"LOG_FORMAT":                  o.LogFormat(),
		"LOG_LEVEL":                   o.LogLevel(),
		"METRICS_ALLOWED_NETWORKS":    strings.Join(o.MetricsAllowedNetworks(), ","),
		"METRICS_COLLECTOR":           o.HasMetricsCollector(),
		"METRICS_PASSWORD":            secretValue(o.MetricsPassword(), redactSecret),
		"METRICS_USERNAME":            o.MetricsUsername(),
		"OPENPODCAST_API_ENDPOINT":    o.OpenPodcastAPIEndpoint(),
		"OPENPODCAST_API_KEY":         secretValue(o.OpenPodcastAPIKey(), redactSecret),
		"POSTHOG_API_ENDPOINT":        o.PostHogAPIEndpoint(),
		"POSTHOG_API_KEY":             secretValue(o.PostHogAPIKey(), redactSecret),
		"RATE_LIMIT_PER_SERVER":       o.RateLimitPerServer(),
		"ROOT_URL":                    o.RootURL(),
		"TRUSTED_PROXIES":             strings.Join(o.env.TrustedProxies, ","),
		"UPSTREAM_FEED_URL":           o.env.UpstreamFeedURL,
		"VERSION":                     o.env.Version,
		"WEBSITE_URL":                 o.env.WebsiteURL,
	}

	sortedKeys := slices.Sorted(maps.Keys(keyValues))
	sortedOptions := make([]Option, len(sortedKeys))
	for i, key := range sortedKeys {
		sortedOptions[i] = Option{Key: key, Value: keyValues[key]}
	}
	return sortedOptions
}

func (o *Options) String() string {
	var builder strings.Builder
	for _, option := range o.SortedOptions(true) {
		fmt.Fprintf(&builder, "%s=%v\n", option.Key, option.Value)
	}
	return builder.String()
}

func secretValue(value string, redactSecret bool) string {
	if redactSecret && value != "" {
		return "<secret>"
	}
	return value
}
