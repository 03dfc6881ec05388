package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
// Precedence: process environment > .env file > defaults.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	Mode          string `env:"GIN_MODE" envDefault:"debug"`
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"host=localhost user=postgres password=postgres dbname=projectnest port=5432 sslmode=disable TimeZone=UTC"`
	SessionSecret string `env:"SESSION_SECRET"`
	SiteURL       string `env:"SITE_URL" envDefault:"http://localhost:8080"`

	Log      LogConfig
	Cache    CacheConfig
	Comments CommentConfig
	Mail     MailConfig
	Avatar   AvatarConfig
	GitHub   GitHubConfig

	PopularityInterval time.Duration `env:"POPULARITY_INTERVAL" envDefault:"500ms"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type CacheConfig struct {
	Size int           `env:"CACHE_SIZE" envDefault:"500"`
	TTL  time.Duration `env:"CACHE_TTL" envDefault:"1m"`
}

type CommentConfig struct {
	// OrphanPolicy is one of drop, promote or error.
	OrphanPolicy string `env:"COMMENT_ORPHAN_POLICY" envDefault:"drop"`
}

type MailConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM"`
}

// Enabled reports whether every SMTP setting is present.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.Port != "" && m.Username != "" && m.Password != "" && m.From != ""
}

type AvatarConfig struct {
	UploadURL string `env:"AVATAR_UPLOAD_URL" envDefault:"https://api.imgur.com/3/image"`
	ClientID  string `env:"AVATAR_CLIENT_ID"`
	MaxBytes  int64  `env:"AVATAR_MAX_BYTES" envDefault:"2097152"`
}

type GitHubConfig struct {
	ClientID     string `env:"GITHUB_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_CLIENT_SECRET"`
}

// Enabled reports whether GitHub sign-in can be offered.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

const devSessionSecret = "secret_key_change_me"

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Comments.OrphanPolicy {
	case "drop", "promote", "error":
	default:
		return fmt.Errorf("invalid COMMENT_ORPHAN_POLICY %q", c.Comments.OrphanPolicy)
	}
	if c.SessionSecret == "" {
		if c.Mode == "release" {
			return errors.New("SESSION_SECRET is required in release mode")
		}
		c.SessionSecret = devSessionSecret
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive, got %d", c.Cache.Size)
	}
	return nil
}
