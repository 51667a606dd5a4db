// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cli // import "openpodcast.dev/forwarder/internal/cli"

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/feed"
)

var (
	flagRewriteBase    string
	flagRewritePrefix  string
	flagRewriteWebsite string
)

var rewriteCmd = cobra.Command{
	Use:   "rewrite [file]",
	Short: "Rewrite a feed document the way it's served",
	Long: `Rewrite a feed document the way it's served.

Reads the feed from file or stdin and prints it with forwardable enclosures
pointing to the indirection endpoint and every link pointing to the website.
`,

	Example: `
$ forwarder rewrite --base https://pod.example.com feed.xml
$ curl -s https://example.com/feed.xml | forwarder rewrite
`,

	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := cmd.InOrStdin()
		if len(args) != 0 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open feed: %w", err)
			}
			defer f.Close()
			r = f
		}

		replacer, err := makeReplacer(flagRewriteBase, flagRewritePrefix,
			flagRewriteWebsite)
		if err != nil {
			return err
		}
		return rewrite(cmd.OutOrStdout(), r, replacer)
	},
}

func init() {
	rewriteCmd.Flags().StringVar(&flagRewriteBase, "base", "",
		"Public URL of the forwarder (default BASE_URL or LISTEN_ADDR)")
	rewriteCmd.Flags().StringVar(&flagRewritePrefix, "prefix", "",
		"Path prefix of indirection URLs (default base path and FORWARD_PREFIX)")
	rewriteCmd.Flags().StringVar(&flagRewriteWebsite, "website", "",
		"Replacement of every link (default WEBSITE_URL)")
}

func rewrite(w io.Writer, r io.Reader, replacer *feed.Replacer) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read feed: %w", err)
	}

	if _, err := io.WriteString(w, replacer.Replace(string(b))); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	return nil
}

// makeReplacer returns the replacer of served feeds, with configured values
// overridden by non-empty arguments.
func makeReplacer(base, prefix, website string) (*feed.Replacer, error) {
	baseURL, err := parseFlagURL("base", base, defaultBaseURL())
	if err != nil {
		return nil, err
	}

	websiteURL, err := parseFlagURL("website", website,
		config.Opts.WebsiteURL().String())
	if err != nil {
		return nil, err
	}

	if prefix == "" {
		prefix = config.Opts.BasePath() + config.Opts.ForwardPrefix()
	}
	return feed.NewReplacer(websiteURL, baseURL, prefix), nil
}

func defaultBaseURL() string {
	if config.Opts.HasBaseURL() {
		return config.Opts.RootURL()
	}
	return autoScheme() + "://" + config.Opts.ListenAddr()
}

func autoScheme() string {
	if config.Opts.HTTPS() {
		return "https"
	}
	return "http"
}

func parseFlagURL(name, value, defaultValue string) (*url.URL, error) {
	if value == "" {
		value = defaultValue
	}

	u, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	} else if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid --%s %q: absolute URL required", name,
			value)
	}
	return u, nil
}
