package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Threads    ThreadsConfig    `yaml:"threads" mapstructure:"threads"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Engagement EngagementConfig `yaml:"engagement" mapstructure:"engagement"`
	Posting    PostingConfig    `yaml:"posting" mapstructure:"posting"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
}

// ThreadsConfig contains target-site URLs and route patterns
type ThreadsConfig struct {
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	LoginURLPattern    string `yaml:"login_url_pattern" mapstructure:"login_url_pattern"`
	AuthedRoutePattern string `yaml:"authed_route_pattern" mapstructure:"authed_route_pattern"`
}

// BrowserConfig contains browser session settings
type BrowserConfig struct {
	Headless       bool          `yaml:"headless" mapstructure:"headless"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	ViewportWidth  int           `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" mapstructure:"viewport_height"`
	NavTimeout     time.Duration `yaml:"nav_timeout" mapstructure:"nav_timeout"`
	ElementProbe   time.Duration `yaml:"element_probe" mapstructure:"element_probe"`
	LoginWait      time.Duration `yaml:"login_wait" mapstructure:"login_wait"`
	ProfileDir     string        `yaml:"profile_dir" mapstructure:"profile_dir"`
}

// EngagementConfig contains interaction-loop tuning. The click-through
// probabilities are empirical anti-detection values, kept configurable.
type EngagementConfig struct {
	LikeProbability   float64       `yaml:"like_probability" mapstructure:"like_probability"`
	FollowProbability float64       `yaml:"follow_probability" mapstructure:"follow_probability"`
	ScrollDeltaMin    int           `yaml:"scroll_delta_min" mapstructure:"scroll_delta_min"`
	ScrollDeltaMax    int           `yaml:"scroll_delta_max" mapstructure:"scroll_delta_max"`
	PauseMin          time.Duration `yaml:"pause_min" mapstructure:"pause_min"`
	PauseMax          time.Duration `yaml:"pause_max" mapstructure:"pause_max"`
}

// PostingConfig contains posting-pipeline timing
type PostingConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay" mapstructure:"settle_delay"`
	TypeDelay   time.Duration `yaml:"type_delay" mapstructure:"type_delay"`
}

// StorageConfig contains record-store settings
type StorageConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	LogsDir string `yaml:"logs_dir" mapstructure:"logs_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// ServerConfig contains the HTTP trigger-surface settings
type ServerConfig struct {
	Addr         string `yaml:"addr" mapstructure:"addr"`
	CronSchedule string `yaml:"cron_schedule" mapstructure:"cron_schedule"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("THREADS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if err := createDefaultConfig(configPath); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("threads.base_url", "https://www.threads.net/")
	viper.SetDefault("threads.login_url_pattern", "/login")
	viper.SetDefault("threads.authed_route_pattern", "/home")

	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("browser.viewport_width", 1280)
	viper.SetDefault("browser.viewport_height", 720)
	viper.SetDefault("browser.nav_timeout", "30s")
	viper.SetDefault("browser.element_probe", "2s")
	viper.SetDefault("browser.login_wait", "15s")
	viper.SetDefault("browser.profile_dir", "")

	viper.SetDefault("engagement.like_probability", 0.3)
	viper.SetDefault("engagement.follow_probability", 0.2)
	viper.SetDefault("engagement.scroll_delta_min", 300)
	viper.SetDefault("engagement.scroll_delta_max", 800)
	viper.SetDefault("engagement.pause_min", "1s")
	viper.SetDefault("engagement.pause_max", "3s")

	viper.SetDefault("posting.settle_delay", "4s")
	viper.SetDefault("posting.type_delay", "400ms")

	viper.SetDefault("storage.path", "./data/threads.db")
	viper.SetDefault("storage.logs_dir", "./logs")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("server.addr", ":8990")
	viper.SetDefault("server.cron_schedule", "0 * * * * *")
}

// createDefaultConfig creates a default configuration file
func createDefaultConfig(configPath string) error {
	config := Config{
		Threads: ThreadsConfig{
			BaseURL:            "https://www.threads.net/",
			LoginURLPattern:    "/login",
			AuthedRoutePattern: "/home",
		},
		Browser: BrowserConfig{
			Headless:       true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:  1280,
			ViewportHeight: 720,
			NavTimeout:     30 * time.Second,
			ElementProbe:   2 * time.Second,
			LoginWait:      15 * time.Second,
		},
		Engagement: EngagementConfig{
			LikeProbability:   0.3,
			FollowProbability: 0.2,
			ScrollDeltaMin:    300,
			ScrollDeltaMax:    800,
			PauseMin:          time.Second,
			PauseMax:          3 * time.Second,
		},
		Posting: PostingConfig{
			SettleDelay: 4 * time.Second,
			TypeDelay:   400 * time.Millisecond,
		},
		Storage: StorageConfig{
			Path:    "./data/threads.db",
			LogsDir: "./logs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Server: ServerConfig{
			Addr:         ":8990",
			CronSchedule: "0 * * * * *",
		},
	}

	data, err := yaml.Marshal(&config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Threads.BaseURL == "" {
		return fmt.Errorf("threads base_url is required")
	}
	if config.Browser.UserAgent == "" {
		return fmt.Errorf("browser user_agent is required")
	}
	if config.Engagement.LikeProbability < 0 || config.Engagement.LikeProbability > 1 {
		return fmt.Errorf("engagement like_probability must be within [0,1]")
	}
	if config.Engagement.FollowProbability < 0 || config.Engagement.FollowProbability > 1 {
		return fmt.Errorf("engagement follow_probability must be within [0,1]")
	}
	if config.Engagement.ScrollDeltaMin > config.Engagement.ScrollDeltaMax {
		return fmt.Errorf("engagement scroll delta range is inverted")
	}
	if config.Engagement.PauseMin > config.Engagement.PauseMax {
		return fmt.Errorf("engagement pause range is inverted")
	}
	if config.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}
