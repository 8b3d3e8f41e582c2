// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// DefaultExtraRepos is the curated list of public repositories mirrored for every user.
var DefaultExtraRepos = []string{"facebook/react", "vercel/next.js", "microsoft/vscode"}

// Config holds all configuration for the application.
type Config struct {
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr         string        `mapstructure:"HTTP_ADDR"`
	StoreDriver      string        `mapstructure:"STORE_DRIVER"`
	DBURL            string        `mapstructure:"DB_URL"`
	GithubAPIURL     string        `mapstructure:"GITHUB_API_URL"`
	SyncInterval     time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency  int           `mapstructure:"SYNC_CONCURRENCY"`
	PerPage          int           `mapstructure:"PER_PAGE"`
	PageDelay        time.Duration `mapstructure:"PAGE_DELAY"`
	HistoryPageDelay time.Duration `mapstructure:"HISTORY_PAGE_DELAY"`
	RateLimitBackoff time.Duration `mapstructure:"RATE_LIMIT_BACKOFF"`
	MemberCap        int           `mapstructure:"MEMBER_CAP"`
	ExtraRepos       []string      `mapstructure:"EXTRA_REPOS"`
	ExtraPRCap       int           `mapstructure:"EXTRA_PR_CAP"`
	ExtraIssueCap    int           `mapstructure:"EXTRA_ISSUE_CAP"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_URL", "")
	v.SetDefault("GITHUB_API_URL", "")
	v.SetDefault("SYNC_INTERVAL", "6h")
	v.SetDefault("SYNC_CONCURRENCY", 2)
	v.SetDefault("PER_PAGE", 100)
	v.SetDefault("PAGE_DELAY", "1s")
	v.SetDefault("HISTORY_PAGE_DELAY", "500ms")
	v.SetDefault("RATE_LIMIT_BACKOFF", "60s")
	v.SetDefault("MEMBER_CAP", 20)
	v.SetDefault("EXTRA_REPOS", strings.Join(DefaultExtraRepos, ","))
	v.SetDefault("EXTRA_PR_CAP", 2000)
	v.SetDefault("EXTRA_ISSUE_CAP", 600)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ExtraRepos = splitList(cfg.ExtraRepos)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		return errors.New("PER_PAGE must be between 1 and 100")
	}
	if c.SyncConcurrency < 1 {
		return errors.New("SYNC_CONCURRENCY must be at least 1")
	}
	if c.MemberCap < 0 || c.ExtraPRCap < 0 || c.ExtraIssueCap < 0 {
		return errors.New("MEMBER_CAP, EXTRA_PR_CAP and EXTRA_ISSUE_CAP must not be negative")
	}
	if c.SyncInterval < 0 {
		return errors.New("SYNC_INTERVAL must not be negative")
	}
	return nil
}

// splitList accepts both a real list and a single comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
