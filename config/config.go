/*
Package config loads the server configuration.

SOURCES (highest precedence first):
  1. Environment variables prefixed POS_ (POS_PORT, POS_DB_PATH,
     POS_SEARCH_PAGE_SIZE, POS_AUTH_DISABLED, ...). Nested keys use "_".
  2. Optional config file (yaml, toml or json) given with -config
  3. Defaults below

EXAMPLE (pos.yaml):
  port: 8080
  db_path: ./data/pos.db
  currency: PHP
  strict_stock: false
  auth:
    tokens:
      - token: s3cr3t-Till-1
        caller: cashier-1
      - token: s3cr3t-Office
        caller: manager
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Port             int           `mapstructure:"port"`
	DBPath           string        `mapstructure:"db_path"`
	LogLevel         string        `mapstructure:"log_level"`
	Currency         string        `mapstructure:"currency"`
	SearchPageSize   int           `mapstructure:"search_page_size"`
	BrowsePageSize   int           `mapstructure:"browse_page_size"`
	RankingWindow    time.Duration `mapstructure:"ranking_window"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	PurchaseRetries  int           `mapstructure:"purchase_retries"`
	StrictStock      bool          `mapstructure:"strict_stock"`

	Auth AuthConfig `mapstructure:"auth"`
	CORS CORSConfig `mapstructure:"cors"`
}

// AuthConfig lists the bearer tokens accepted by the API. Tokens are a
// list rather than a map because viper lowercases map keys.
type AuthConfig struct {
	Disabled bool          `mapstructure:"disabled"`
	Tokens   []TokenConfig `mapstructure:"tokens"`
}

type TokenConfig struct {
	Token  string `mapstructure:"token"`
	Caller string `mapstructure:"caller"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "pos.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("currency", "PHP")
	v.SetDefault("search_page_size", 10)
	v.SetDefault("browse_page_size", 20)
	v.SetDefault("ranking_window", "720h")
	v.SetDefault("statement_timeout", "5s")
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("purchase_retries", 3)
	v.SetDefault("strict_stock", false)
	v.SetDefault("auth.disabled", false)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
}

// Load reads configuration from path (may be empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid config: port %d out of range", c.Port)
	case c.DBPath == "":
		return fmt.Errorf("invalid config: db_path is required")
	case c.SearchPageSize <= 0 || c.BrowsePageSize <= 0:
		return fmt.Errorf("invalid config: page sizes must be positive")
	case c.RankingWindow <= 0:
		return fmt.Errorf("invalid config: ranking_window must be positive")
	case c.PurchaseRetries < 0:
		return fmt.Errorf("invalid config: purchase_retries must not be negative")
	case !c.Auth.Disabled && len(c.Auth.Tokens) == 0:
		return fmt.Errorf("invalid config: auth.tokens is empty and auth is enabled")
	}
	for i, t := range c.Auth.Tokens {
		if t.Token == "" || t.Caller == "" {
			return fmt.Errorf("invalid config: auth.tokens[%d] needs token and caller", i)
		}
	}
	return nil
}
