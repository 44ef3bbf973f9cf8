// Package config loads server settings from the environment.
//
// Values come from, in order of precedence:
//  1. real environment variables
//  2. a .env file in the working directory (optional, loaded with godotenv)
//  3. the defaults below
//
// Viper reads the environment for us. godotenv only copies .env entries into
// the process environment when they are not already set, so a real env var
// always wins over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is every setting the server needs, flattened from env vars.
type Config struct {
	Port   int    `mapstructure:"PORT"`
	DBPath string `mapstructure:"DB_PATH"`

	JWTSecret    string `mapstructure:"JWT_SECRET"`
	AppURL       string `mapstructure:"APP_URL"`
	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`

	ResendAPIKey     string `mapstructure:"RESEND_API_KEY"`
	EmailFrom        string `mapstructure:"EMAIL_FROM"`
	PublicCatalogURL string `mapstructure:"PUBLIC_CATALOG_URL"`
	CatalogDir       string `mapstructure:"CATALOG_DIR"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
	TrustedProxies string  `mapstructure:"TRUSTED_PROXIES"`

	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `mapstructure:"GITHUB_CALLBACK_URL"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"PORT":                 8080,
	"DB_PATH":              "data/storefront.db",
	"JWT_SECRET":           "",
	"APP_URL":              "http://localhost:3000",
	"COOKIE_SECURE":        false,
	"RESEND_API_KEY":       "",
	"EMAIL_FROM":           "IWatches <onboarding@resend.dev>",
	"PUBLIC_CATALOG_URL":   "https://slelguoygbfzlpylpxfs.supabase.co/storage/v1/object/public/document-uploads/CATALOGO-25-26-1760710906370.pdf",
	"CATALOG_DIR":          "",
	"CORS_ORIGINS":         "http://localhost:3000",
	"RATE_LIMIT_RPS":       5.0,
	"RATE_LIMIT_BURST":     10,
	"TRUSTED_PROXIES":      "",
	"GITHUB_CLIENT_ID":     "",
	"GITHUB_CLIENT_SECRET": "",
	"GITHUB_CALLBACK_URL":  "",
	"LOG_LEVEL":            "info",
}

// Load reads .env (if present) and the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return fromViper(viper.New())
}

// fromViper binds every known key on v and unmarshals the result.
// Split out from Load so tests can run against a private viper instance.
func fromViper(v *viper.Viper) (Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		// AutomaticEnv alone does not make Unmarshal see env-only keys;
		// an explicit bind does.
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/api/auth/github/callback", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// AllowedOrigins splits CORS_ORIGINS on commas, dropping blanks.
func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

// TrustedProxyList splits TRUSTED_PROXIES (CIDRs or addresses) on commas.
func (c Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// SlogLevel maps LOG_LEVEL onto a slog.Level, defaulting to Info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
