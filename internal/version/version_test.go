package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origVersion, origSHA, origTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = origVersion, origSHA, origTime })

	assert.Equal(t, "swing dev (unknown, built unknown)", String())

	Version, GitSHA, BuildTime = "0.3.0", "4f9c2a1e0b7d", "2026-10-01T09:00:00Z"
	assert.Equal(t, "swing 0.3.0 (4f9c2a1, built 2026-10-01T09:00:00Z)", String())
}
