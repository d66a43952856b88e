package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// A default file is written next to the requested path.
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)

	assert.Equal(t, "https://www.threads.net/", cfg.Threads.BaseURL)
	assert.Equal(t, "/home", cfg.Threads.AuthedRoutePattern)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavTimeout)
	assert.Equal(t, 2*time.Second, cfg.Browser.ElementProbe)
	assert.Equal(t, 15*time.Second, cfg.Browser.LoginWait)
	assert.InDelta(t, 0.3, cfg.Engagement.LikeProbability, 1e-9)
	assert.InDelta(t, 0.2, cfg.Engagement.FollowProbability, 1e-9)
	assert.Equal(t, 4*time.Second, cfg.Posting.SettleDelay)
	assert.Equal(t, ":8990", cfg.Server.Addr)
	assert.Equal(t, "0 * * * * *", cfg.Server.CronSchedule)
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
threads:
  base_url: https://www.threads.net/
browser:
  headless: false
  viewport_width: 1920
  viewport_height: 1080
engagement:
  like_probability: 0.5
server:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.Equal(t, 1080, cfg.Browser.ViewportHeight)
	assert.InDelta(t, 0.5, cfg.Engagement.LikeProbability, 1e-9)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	// Unset keys keep their defaults.
	assert.Equal(t, "./data/threads.db", cfg.Storage.Path)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
engagement:
  like_probability: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			Threads:    ThreadsConfig{BaseURL: "https://www.threads.net/"},
			Browser:    BrowserConfig{UserAgent: "UA"},
			Engagement: EngagementConfig{LikeProbability: 0.3, FollowProbability: 0.2, ScrollDeltaMin: 300, ScrollDeltaMax: 800, PauseMin: time.Second, PauseMax: 3 * time.Second},
			Storage:    StorageConfig{Path: "./data/threads.db"},
		}
	}

	assert.NoError(t, validateConfig(base()))

	c := base()
	c.Threads.BaseURL = ""
	assert.Error(t, validateConfig(c))

	c = base()
	c.Engagement.FollowProbability = -0.1
	assert.Error(t, validateConfig(c))

	c = base()
	c.Engagement.ScrollDeltaMin = 900
	assert.Error(t, validateConfig(c))

	c = base()
	c.Engagement.PauseMin = 5 * time.Second
	assert.Error(t, validateConfig(c))

	c = base()
	c.Storage.Path = ""
	assert.Error(t, validateConfig(c))
}
