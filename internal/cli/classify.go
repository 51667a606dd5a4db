package cli // import "openpodcast.dev/forwarder/internal/cli"

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"openpodcast.dev/forwarder/internal/config"
	"openpodcast.dev/forwarder/internal/useragent"
)

var classifyCmd = cobra.Command{
	Use:   "classify [user-agent...]",
	Short: "Identify podcast clients by user agent",
	Long: `Identify podcast clients by user agent.

Prints canonical name and bot flag of every user agent, separated by a tab.
User agents are read line by line from stdin, if none given.
`,

	Example: `
$ forwarder classify "AntennaPod/2.7.1"
$ forwarder classify < user-agents.txt
`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return classify(cmd.OutOrStdout(), cmd.InOrStdin(),
			config.Opts.UserAgentTable(), args)
	},
}

func classify(w io.Writer, r io.Reader, table *useragent.Table,
	userAgents []string,
) error {
	classifyOne := func(userAgent string) {
		identity := table.Classify(userAgent)
		fmt.Fprintf(w, "%s\t%t\n", identity.Name, identity.Bot)
	}

	if len(userAgents) != 0 {
		for _, userAgent := range userAgents {
			classifyOne(userAgent)
		}
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		classifyOne(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read user agents: %w", err)
	}
	return nil
}
