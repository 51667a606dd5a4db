package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_VersionURL(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{version: devVersion, want: ""},
		{version: "1.2.0", want: repoURL + "/releases/tag/v1.2.0"},
		{version: "1.2.0-3-gabcdef", want: repoURL + "/compare/v1.2.0...abcdef"},
		{version: "1.2.0-rc1", want: ""},
	}

	saved := Version
	t.Cleanup(func() { Version = saved })

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.want, New().VersionURL())
		})
	}
}

func TestInfo_CommitURL(t *testing.T) {
	saved := Commit
	t.Cleanup(func() { Commit = saved })

	assert.Empty(t, New().CommitURL())
	Commit = "abcdef"
	assert.Equal(t, repoURL+"/commit/abcdef", New().CommitURL())
}

func TestInfo_Lines(t *testing.T) {
	lines := New().Lines()
	assert.Len(t, lines, 8)
	assert.Equal(t, [2]string{"Version", Version}, lines[0])
}
