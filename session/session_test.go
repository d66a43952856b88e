package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyConfigServerURL(t *testing.T) {
	p := ProxyConfig{Protocol: "http", Host: "10.0.0.1", Port: 8080}
	assert.Equal(t, "http://10.0.0.1:8080", p.ServerURL())

	p = ProxyConfig{Host: "10.0.0.2", Port: 3128}
	assert.Equal(t, "http://10.0.0.2:3128", p.ServerURL(), "missing protocol defaults to http")

	p = ProxyConfig{Protocol: "socks5", Host: "proxy.example.com", Port: 1080}
	assert.Equal(t, "socks5://proxy.example.com:1080", p.ServerURL())
}

func TestProxyConfigHasAuth(t *testing.T) {
	assert.False(t, ProxyConfig{Host: "h", Port: 1}.HasAuth())
	assert.True(t, ProxyConfig{Host: "h", Port: 1, Username: "u", Password: "p"}.HasAuth())
	assert.False(t, ProxyConfig{Host: "h", Port: 1, Username: "u"}.HasAuth(), "username without password is not auth")
}

func TestParseCookiePayload(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		payload := `[{"name":"sessionid","value":"abc","domain":".threads.net","path":"/"}]`
		cookies, ok := ParseCookiePayload(payload)
		require.True(t, ok)
		require.Len(t, cookies, 1)
		assert.Equal(t, "sessionid", cookies[0].Name)
		assert.Equal(t, ".threads.net", cookies[0].Domain)
	})

	t.Run("invalid json is not ok", func(t *testing.T) {
		cookies, ok := ParseCookiePayload("{truncated")
		assert.False(t, ok)
		assert.Nil(t, cookies)
	})

	t.Run("empty set is not ok", func(t *testing.T) {
		_, ok := ParseCookiePayload("[]")
		assert.False(t, ok)

		_, ok = ParseCookiePayload("null")
		assert.False(t, ok)

		_, ok = ParseCookiePayload("")
		assert.False(t, ok)
	})

	t.Run("cookie without name or target is not ok", func(t *testing.T) {
		_, ok := ParseCookiePayload(`[{"value":"abc","domain":".threads.net"}]`)
		assert.False(t, ok)

		_, ok = ParseCookiePayload(`[{"name":"sessionid","value":"abc"}]`)
		assert.False(t, ok)
	})
}

func TestProfilePath(t *testing.T) {
	got := ProfilePath(filepath.Join("data", "profiles"))
	assert.Equal(t, filepath.Join("data", "profiles", "automation-profile"), got)
}
