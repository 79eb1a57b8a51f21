package version

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func withVersion(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	Version, GitCommit, BuildDate = v, commit, date
	t.Cleanup(func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	})
}

func noColor(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func TestVersion_DefaultValues(t *testing.T) {
	assert.NotEmpty(t, Version)
}

func TestColored_PlainWhenColorDisabled(t *testing.T) {
	noColor(t)
	withVersion(t, "1.2.3-rc1", "", "")
	assert.Equal(t, "1.2.3-rc1", Colored())
}

func TestColored_LeavesOddVersionsAlone(t *testing.T) {
	noColor(t)
	withVersion(t, "nightly", "", "")
	assert.Equal(t, "nightly", Colored())
}

func TestString_IncludesOptionalFields(t *testing.T) {
	noColor(t)
	withVersion(t, "1.2.3", "abc123", "2026-01-15T10:30:00Z")
	assert.Equal(t, "jitscope 1.2.3 (abc123) built 2026-01-15T10:30:00Z", String())
}

func TestString_OmitsEmptyFields(t *testing.T) {
	noColor(t)
	withVersion(t, "1.2.3", "", "")
	assert.Equal(t, "jitscope 1.2.3", String())
}
