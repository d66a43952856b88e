package campaign

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyenanhtuan21/threads-manager/storage"
)

func TestAggregateStatus(t *testing.T) {
	assert.Equal(t, storage.CampaignStatusStopped, AggregateStatus(true),
		"remaining pending joins mean the run was interrupted")
	assert.Equal(t, storage.CampaignStatusCompleted, AggregateStatus(false))
}

func TestJitterDelay(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	t.Run("stays in bounds", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			d := JitterDelay(rng, 30, 120)
			assert.GreaterOrEqual(t, d, 30*time.Second)
			assert.LessOrEqual(t, d, 120*time.Second)
		}
	})

	t.Run("equal bounds are deterministic", func(t *testing.T) {
		assert.Equal(t, 45*time.Second, JitterDelay(rng, 45, 45))
	})

	t.Run("inverted bounds collapse to min", func(t *testing.T) {
		assert.Equal(t, 60*time.Second, JitterDelay(rng, 60, 10))
	})
}

func TestProxyFromRecord(t *testing.T) {
	user := "u"
	pass := "p"
	rec := &storage.Proxy{Protocol: "socks5", Host: "10.0.0.1", Port: 1080, Username: &user, Password: &pass}

	cfg := ProxyFromRecord(rec)
	require.NotNil(t, cfg)
	assert.Equal(t, "socks5", cfg.Protocol)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 1080, cfg.Port)
	assert.Equal(t, "u", cfg.Username)
	assert.Equal(t, "p", cfg.Password)
	assert.True(t, cfg.HasAuth())

	bare := ProxyFromRecord(&storage.Proxy{Protocol: "http", Host: "h", Port: 8080})
	assert.False(t, bare.HasAuth())
}
