package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLevels(t *testing.T) {
	logger := Setup("text", "debug")
	assert.True(t, logger.Enabled(nil, slog.LevelDebug))

	logger = Setup("json", "warn")
	assert.False(t, logger.Enabled(nil, slog.LevelInfo))
	assert.True(t, logger.Enabled(nil, slog.LevelWarn))

	// Unknown level falls back to info.
	logger = Setup("text", "verbose")
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
	assert.False(t, logger.Enabled(nil, slog.LevelDebug))
}

func TestAnonymizeEmail(t *testing.T) {
	assert.Empty(t, AnonymizeEmail(""))

	a := AnonymizeEmail("alice@example.com")
	b := AnonymizeEmail("alice@example.com")
	c := AnonymizeEmail("bob@example.com")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "user:")
	assert.NotContains(t, a, "alice")
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))

	masked := SanitizeToken("super-secret-token")
	assert.NotContains(t, masked, "super")
	assert.Contains(t, masked, "18 chars")
}

func TestErrWithNil(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, slog.KindGroup, attr.Value.Kind())

	attr = Err(assert.AnError)
	assert.Equal(t, KeyError, attr.Key)
}
