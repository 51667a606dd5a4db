// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package version // import "openpodcast.dev/forwarder/internal/version"

import (
	"runtime"
	"strings"
)

const (
	devVersion = "Development Version"
	repoURL    = "https://github.com/openpodcast/forwarder"
)

// Variables populated at build time when using LD_FLAGS.
var (
	Commit    = "Unknown (built outside VCS)"
	BuildDate = "Unknown (built outside VCS)"
	Version   = devVersion
)

// Info describes the running binary.
type Info struct{}

func New() Info { return Info{} }

func (Info) Commit() string { return Commit }

func (self Info) CommitURL() string {
	if strings.HasPrefix(self.Commit(), "Unknown ") {
		return ""
	}
	return repoURL + "/commit/" + self.Commit()
}

func (Info) BuildDate() string { return BuildDate }

func (Info) Version() string { return Version }

// VersionURL returns URL of the release, or of the comparison with the
// release for "git describe" versions like 1.2.0-3-gabcdef.
func (self Info) VersionURL() string {
	if self.Version() == devVersion {
		return ""
	}

	tag, commits, found := strings.Cut(self.Version(), "-")
	if !found {
		return repoURL + "/releases/tag/v" + tag
	}

	_, hash, found := strings.Cut(commits, "-g")
	if !found {
		return ""
	}
	return repoURL + "/compare/v" + tag + "..." + hash
}

func (Info) GoVersion() string { return runtime.Version() }

// Lines returns build information as name and value pairs, in the order they
// should be printed.
func (self Info) Lines() [][2]string {
	return [][2]string{
		{"Version", self.Version()},
		{"Version URL", self.VersionURL()},
		{"Commit", self.Commit()},
		{"Build Date", self.BuildDate()},
		{"Go Version", self.GoVersion()},
		{"Compiler", runtime.Compiler},
		{"Arch", runtime.GOARCH},
		{"OS", runtime.GOOS},
	}
}
