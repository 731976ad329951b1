package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withVersion(t *testing.T, version, commit, built string) {
	t.Helper()
	oldVersion, oldCommit, oldBuilt := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = oldVersion, oldCommit, oldBuilt
	})
}

func TestGetShortVersion(t *testing.T) {
	withVersion(t, "v1.2.3", "0123456789abcdef", "unknown")
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())

	withVersion(t, "dev", "0123456789abcdef", "unknown")
	assert.Equal(t, "dev-0123456", GetShortVersion())
}

func TestGetDetailedVersion(t *testing.T) {
	withVersion(t, "v1.2.3", "abcdef0123", "2025-01-02T03:04:05Z")

	out := GetDetailedVersion()
	assert.Contains(t, out, "Version: v1.2.3")
	assert.Contains(t, out, "Commit: abcdef0123")
	assert.Contains(t, out, "Built: 2025-01-02T03:04:05Z")
	assert.Contains(t, out, "Go: ")
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), parseTime("2025-01-02 03:04:05"))
}
