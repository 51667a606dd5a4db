// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cli // import "openpodcast.dev/forwarder/internal/cli"

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"openpodcast.dev/forwarder/internal/version"
)

var infoCmd = cobra.Command{
	Use:   "info",
	Short: "Show build information",
	Args:  cobra.ExactArgs(0),
	Run:   func(cmd *cobra.Command, args []string) { info(cmd.OutOrStdout()) },
}

func info(w io.Writer) {
	for _, line := range version.New().Lines() {
		if line[1] != "" {
			fmt.Fprintf(w, "%s: %s\n", line[0], line[1])
		}
	}
}
