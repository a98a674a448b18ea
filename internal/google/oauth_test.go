package google

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOAuthConfigUsesCalendarScopes(t *testing.T) {
	conf := GetOAuthConfig()
	assert.Contains(t, conf.Scopes, "https://www.googleapis.com/auth/calendar")
	assert.Contains(t, conf.Scopes, "openid")
}

func TestTokenFilePerAccount(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	def := tokenFile("default")
	assert.Equal(t, "google.token", filepath.Base(def))
	assert.Contains(t, def, cacheDirName)

	work := tokenFile("work")
	assert.Equal(t, "google-work.token", filepath.Base(work))
	assert.NotEqual(t, def, work)
}

func TestHasTokenForAccount(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	assert.False(t, HasTokenForAccount(""))
	assert.False(t, HasTokenForAccount("default"))
	assert.False(t, HasToken())
}

func TestGetAuthURL(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	url := GetAuthURL()
	require.NotEmpty(t, url)
	assert.True(t, strings.HasPrefix(url, "https://accounts.google.com/"))
	assert.Contains(t, url, "client-id")
}
