// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Ranking RankingConfig `mapstructure:"ranking"`
	DB      DBConfig      `mapstructure:"db"`
	Archive ArchiveConfig `mapstructure:"archive"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlConfig governs the crawl pipeline.
type CrawlConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	PauseMs          int    `mapstructure:"pause_ms"`
	PauseEvery       int    `mapstructure:"pause_every"`
	ProgressEvery    int    `mapstructure:"progress_every"`
	MaxSitemapDepth  int    `mapstructure:"max_sitemap_depth"`
	ArchiveRawPages  bool   `mapstructure:"archive_raw_pages"`
	CompletionTopic  string `mapstructure:"completion_topic"`
}

// RankingConfig governs the ranking history read path.
type RankingConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ArchiveConfig sets the blob destination for raw crawled HTML.
type ArchiveConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for completion-event publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEOPIPE")
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 300)
	v.SetDefault("crawl.user_agent", "seo-pipeline-bot/1.0 (site health crawler)")
	v.SetDefault("crawl.timeout_seconds", 15)
	v.SetDefault("crawl.pause_ms", 200)
	v.SetDefault("crawl.pause_every", 5)
	v.SetDefault("crawl.progress_every", 10)
	v.SetDefault("crawl.max_sitemap_depth", 8)
	v.SetDefault("crawl.archive_raw_pages", false)
	v.SetDefault("ranking.default_limit", 365)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.timeout_seconds must be > 0")
	}
	if c.Crawl.PauseEvery <= 0 {
		return fmt.Errorf("crawl.pause_every must be > 0")
	}
	if c.Crawl.ProgressEvery <= 0 {
		return fmt.Errorf("crawl.progress_every must be > 0")
	}
	if c.Ranking.DefaultLimit <= 0 {
		return fmt.Errorf("ranking.default_limit must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawl.ArchiveRawPages && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when crawl.archive_raw_pages is enabled")
	}
	return nil
}

// FetchTimeout returns the per-request fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawl.TimeoutSeconds) * time.Second
}

// Pause returns the politeness pause inserted between page fetches.
func (c Config) Pause() time.Duration {
	return time.Duration(c.Crawl.PauseMs) * time.Millisecond
}
