package navigator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthenticatedURL(t *testing.T) {
	assert.True(t, IsAuthenticatedURL("https://www.threads.net/home", "/home"))
	assert.True(t, IsAuthenticatedURL("https://www.threads.net/home?ref=login", "/home"))
	assert.False(t, IsAuthenticatedURL("https://www.threads.net/login", "/home"))
	assert.False(t, IsAuthenticatedURL("https://www.threads.net/@someone", "/home"))

	// An empty route pattern never matches; otherwise every URL would
	// classify as authenticated.
	assert.False(t, IsAuthenticatedURL("https://www.threads.net/home", ""))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNKNOWN", StateUnknown.String())
	assert.Equal(t, "AUTHENTICATED", StateAuthenticated.String())
	assert.Equal(t, "ANONYMOUS", StateAnonymous.String())
	assert.Equal(t, "LOGIN_IN_PROGRESS", StateLoginInProgress.String())
	assert.Equal(t, "LOGIN_FAILED", StateLoginFailed.String())
}
