package cli // import "openpodcast.dev/forwarder/internal/cli"

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/feed"
	"openpodcast.dev/forwarder/internal/reader/parser"
	"openpodcast.dev/forwarder/internal/upstream"
)

var inspectCmd = cobra.Command{
	Use:   "inspect",
	Short: "Fetch the upstream feed and show how it's rewritten",
	Args:  cobra.ExactArgs(0),

	RunE: func(cmd *cobra.Command, args []string) error {
		replacer, err := makeReplacer("", "", "")
		if err != nil {
			return err
		}
		return inspect(cmd.Context(), cmd.OutOrStdout(),
			upstream.New(config.Opts.UpstreamFeedURL(), 0), replacer)
	},
}

func inspect(ctx context.Context, w io.Writer, source *upstream.Source,
	replacer *feed.Replacer,
) error {
	f, err := source.Fetch(ctx)
	if err != nil {
		return err
	} else if !f.OK() {
		return fmt.Errorf("upstream responded with status code %d",
			f.StatusCode)
	}

	summary, err := parser.ParseSummary(bytes.NewReader(f.Body))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Upstream:\t%s\n", source.URL())
	fmt.Fprintf(tw, "Title:\t%s\n", summary.Title)
	fmt.Fprintf(tw, "Site:\t%s\n", summary.SiteURL)
	fmt.Fprintf(tw, "Items:\t%d\n", summary.Items)
	fmt.Fprintf(tw, "Enclosures:\t%d\n", len(summary.Enclosures))
	fmt.Fprintf(tw, "Size:\t%d\n", len(f.Body))
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENCLOSURE\tFORWARD\tREWRITTEN")

	mapping := replacer.Mapping(string(f.Body))
	for _, c := range feed.Extract(string(f.Body)) {
		if c.Origin != feed.OriginEnclosure {
			continue
		}

		rewritten, ok := mapping.Get(c.URL)
		if !ok {
			rewritten = "-"
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", c.URL, ok, rewritten)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write enclosures: %w", err)
	}
	return nil
}
