// Package config loads server settings from a YAML file or the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	// DevJWTSecret is the env-default secret. Only the local env may run with it.
	DevJWTSecret = "dev-secret-change-me"
	// MinJWTSecretLen applies outside the local env.
	MinJWTSecretLen = 32
)

// Config holds every server setting.
type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DBPath   string `yaml:"db_path" env:"DB_PATH" env-default:"./data/gymdesk.db"`
	Timezone string `yaml:"timezone" env:"TIMEZONE" env-default:"America/Mexico_City"`

	ExpiryCheckInterval time.Duration `yaml:"expiry_check_interval" env:"EXPIRY_CHECK_INTERVAL" env-default:"1h"`
	CORSOrigins         []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"*"`

	HTTPServer `yaml:"http_server"`
	Redis      `yaml:"redis"`
	JWT        `yaml:"jwt"`
}

// HTTPServer configures the listener.
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Redis configures the catalog cache. An empty address disables it.
type Redis struct {
	Address    string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password   string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB         int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CatalogTTL time.Duration `yaml:"catalog_ttl" env:"CATALOG_TTL" env-default:"5m"`
}

// JWT configures staff tokens.
type JWT struct {
	Secret   string        `yaml:"secret" env:"JWT_SECRET" env-default:"dev-secret-change-me"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"12h"`
}

// Load reads an optional .env, then CONFIG_PATH if set, else the environment.
func Load() (*Config, error) {
	const op = "config.Load"
	_ = godotenv.Load(".env")

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad is Load for main: on error it prints the variable reference and exits.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n\n%s", err, Usage())
		os.Exit(1)
	}
	return cfg
}

// Validate checks values cleanenv cannot.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.ExpiryCheckInterval <= 0 {
		return fmt.Errorf("expiry check interval must be positive")
	}
	secret := strings.TrimSpace(c.JWT.Secret)
	if secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Env != "local" && (secret == DevJWTSecret || len(secret) < MinJWTSecretLen) {
		return fmt.Errorf("env %q needs a JWT_SECRET of at least %d bytes other than the default", c.Env, MinJWTSecretLen)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool { return c.Redis.Address != "" }

// Usage describes every environment variable.
func Usage() string {
	var cfg Config
	text, _ := cleanenv.GetDescription(&cfg, nil)
	return text
}
