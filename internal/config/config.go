// Package config loads and validates bidwatcher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone database for minimal images

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/bidwatcher/internal/dedup"
	"github.com/JakeFAU/bidwatcher/internal/scheduler"
)

// EnvPrefix namespaces environment overrides, e.g. BIDWATCHER_TWITTER_API_KEY.
const EnvPrefix = "BIDWATCHER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Captcha   CaptchaConfig   `mapstructure:"captcha"`
	Twitter   TwitterConfig   `mapstructure:"twitter"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig identifies the search page and the club being watched.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	State     string `mapstructure:"state"`
	ClubID    string `mapstructure:"club_id"`
	ClubLabel string `mapstructure:"club_label"`
	Timezone  string `mapstructure:"timezone"`
}

// ScheduleConfig controls the job schedule and the operating window.
type ScheduleConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	CacheClearAt string        `mapstructure:"cache_clear_at"`
	OpenHour     int           `mapstructure:"open_hour"`
	CloseHour    int           `mapstructure:"close_hour"`
}

// BrowserConfig configures the chromedp session.
type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless"`
	NoSandbox   bool          `mapstructure:"no_sandbox"`
	UserAgent   string        `mapstructure:"user_agent"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

// CaptchaConfig configures the solving loop and the CapMonster client.
type CaptchaConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TwitterConfig holds OAuth 1.0a user credentials and endpoints.
type TwitterConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	AccessToken  string        `mapstructure:"access_token"`
	AccessSecret string        `mapstructure:"access_secret"`
	UploadURL    string        `mapstructure:"upload_url"`
	TweetURL     string        `mapstructure:"tweet_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Publisher backends.
const (
	BackendTwitter = "twitter"
	BackendPubSub  = "pubsub"
)

// PublisherConfig selects the publishing backend and dedup strategy.
type PublisherConfig struct {
	Backend  string `mapstructure:"backend"`
	DryRun   bool   `mapstructure:"dry_run"`
	Strategy string `mapstructure:"strategy"`
}

// PubSubConfig names the topic used by the pubsub backend.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// CycleConfig bounds a single check.
type CycleConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from .env, an optional YAML file, and the environment.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv reads KEY=VALUE pairs without overriding variables already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://bid.cbf.com.br/")
	v.SetDefault("site.state", "BA")
	v.SetDefault("site.club_id", "20018")
	v.SetDefault("site.club_label", "Vitória-BA(20018)")
	v.SetDefault("site.timezone", "America/Sao_Paulo")
	v.SetDefault("schedule.interval", 3*time.Minute)
	v.SetDefault("schedule.cache_clear_at", "09:00")
	v.SetDefault("schedule.open_hour", 9)
	v.SetDefault("schedule.close_hour", 18)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.settle_delay", 2*time.Second)
	v.SetDefault("browser.step_timeout", 30*time.Second)
	v.SetDefault("captcha.max_attempts", 10)
	v.SetDefault("captcha.api_key", "")
	v.SetDefault("captcha.base_url", "https://api.capmonster.cloud")
	v.SetDefault("captcha.poll_interval", 2*time.Second)
	v.SetDefault("captcha.timeout", 60*time.Second)
	v.SetDefault("twitter.api_key", "")
	v.SetDefault("twitter.api_secret", "")
	v.SetDefault("twitter.access_token", "")
	v.SetDefault("twitter.access_secret", "")
	v.SetDefault("twitter.upload_url", "https://upload.twitter.com/1.1/media/upload.json")
	v.SetDefault("twitter.tweet_url", "https://api.twitter.com/2/tweets")
	v.SetDefault("twitter.timeout", 30*time.Second)
	v.SetDefault("publisher.backend", BackendTwitter)
	v.SetDefault("publisher.dry_run", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("publisher.strategy", string(dedup.MarkBeforePublish))
	v.SetDefault("cycle.timeout", 2*time.Minute)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Site.State == "" || c.Site.ClubID == "" || c.Site.ClubLabel == "" {
		return fmt.Errorf("site.state, site.club_id and site.club_label are required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0")
	}
	if c.Schedule.OpenHour < 0 || c.Schedule.CloseHour > 24 || c.Schedule.OpenHour >= c.Schedule.CloseHour {
		return fmt.Errorf("schedule hours must satisfy 0 <= open_hour < close_hour <= 24, got %d-%d",
			c.Schedule.OpenHour, c.Schedule.CloseHour)
	}
	if _, err := scheduler.ParseDaily(c.Schedule.CacheClearAt); err != nil {
		return fmt.Errorf("schedule.cache_clear_at: %w", err)
	}
	if c.Captcha.MaxAttempts <= 0 {
		return fmt.Errorf("captcha.max_attempts must be > 0")
	}
	if _, err := dedup.ParseStrategy(c.Publisher.Strategy); err != nil {
		return fmt.Errorf("publisher.strategy: %w", err)
	}
	if c.Cycle.Timeout <= 0 {
		return fmt.Errorf("cycle.timeout must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.Captcha.APIKey == "" {
		return fmt.Errorf("captcha.api_key is required")
	}
	if c.Publisher.DryRun {
		return nil
	}
	switch c.Publisher.Backend {
	case BackendTwitter:
		t := c.Twitter
		if t.APIKey == "" || t.APISecret == "" || t.AccessToken == "" || t.AccessSecret == "" {
			return fmt.Errorf("twitter credentials must be set unless publisher.dry_run is enabled")
		}
	case BackendPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.Topic == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic are required for the pubsub backend")
		}
	default:
		return fmt.Errorf("publisher.backend %q is not one of %s, %s", c.Publisher.Backend, BackendTwitter, BackendPubSub)
	}
	return nil
}

// Location resolves the operating timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("site.timezone %q: %w", c.Site.Timezone, err)
	}
	return loc, nil
}

// Strategy returns the parsed dedup strategy. Call after Validate.
func (c Config) Strategy() dedup.Strategy {
	s, _ := dedup.ParseStrategy(c.Publisher.Strategy)
	return s
}
