package version_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vaist/studio/version"
)

func TestUserAgent(t *testing.T) {
	ua := version.UserAgent("studio-play")
	assert.True(t, strings.HasPrefix(ua, "studio-play/"))
	assert.NotEmpty(t, version.VersionOrHash)
}
