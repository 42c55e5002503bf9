// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Output  OutputConfig  `mapstructure:"output"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScraperConfig governs worklist planning and page fetching.
type ScraperConfig struct {
	DefaultSitemap        string   `mapstructure:"default_sitemap"`
	RootURLs              []string `mapstructure:"root_urls"`
	URLMarker             string   `mapstructure:"url_marker"`
	UserAgent             string   `mapstructure:"user_agent"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	DelayMs               int      `mapstructure:"delay_ms"`
	Concurrency           int      `mapstructure:"concurrency"`
	RequestsPerSecond     float64  `mapstructure:"requests_per_second"`
	Burst                 int      `mapstructure:"burst"`
	RespectRobots         bool     `mapstructure:"respect_robots"`
	MaxBodyBytes          int      `mapstructure:"max_body_bytes"`
}

// OutputConfig controls where spreadsheets land locally.
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	MaxColumnWidth int    `mapstructure:"max_column_width"`
}

// StorageConfig sets the optional GCS mirror for artifacts.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database. An empty DSN keeps
// run history in memory and skips record persistence.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	RunTable    string `mapstructure:"run_table"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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
	v.SetDefault("server.request_timeout_seconds", 600)
	v.SetDefault("scraper.default_sitemap", "https://teams-titles.hr.ufl.edu/sitemap.xml")
	v.SetDefault("scraper.root_urls", []string{
		"https://teams-titles.hr.ufl.edu",
		"https://teams-titles.hr.ufl.edu/",
	})
	v.SetDefault("scraper.url_marker", "/teams-title/")
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("scraper.request_timeout_seconds", 30)
	v.SetDefault("scraper.delay_ms", 150)
	v.SetDefault("scraper.concurrency", 1)
	v.SetDefault("scraper.requests_per_second", 0)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("scraper.max_body_bytes", 0)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.max_column_width", 50)
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("db.table", "job_classifications")
	v.SetDefault("db.run_table", "scrape_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.request_timeout_seconds must be > 0")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.DelayMs < 0 {
		return fmt.Errorf("scraper.delay_ms must be >= 0")
	}
	if c.Scraper.RequestsPerSecond < 0 {
		return fmt.Errorf("scraper.requests_per_second must be >= 0")
	}
	if c.Scraper.MaxBodyBytes < 0 {
		return fmt.Errorf("scraper.max_body_bytes must be >= 0")
	}
	if c.Output.MaxColumnWidth < 5 {
		return fmt.Errorf("output.max_column_width must be >= 5")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.DB.DSN != "" {
		for key, name := range map[string]string{"db.table": c.DB.Table, "db.run_table": c.DB.RunTable} {
			if !tableName.MatchString(name) {
				return fmt.Errorf("%s %q is not a valid identifier", key, name)
			}
		}
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// FetchTimeout converts the per-request timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.RequestTimeoutSeconds) * time.Second
}

// Delay returns the politeness pause between pages. Zero disables it.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scraper.DelayMs) * time.Millisecond
}

// RequestTimeout bounds a synchronous API run.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
