package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	RedisURL  string `mapstructure:"REDIS_URL"`
	RedisPass string `mapstructure:"REDIS_PASS"`
	RedisDB   int    `mapstructure:"REDIS_DB"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	BotToken        string `mapstructure:"BOT_TOKEN"`
	PaymentsEnabled bool   `mapstructure:"PAYMENTS_ENABLED"`
	AdminUsername   string `mapstructure:"ADMIN_USERNAME"`
	WebAppURL       string `mapstructure:"WEB_APP_URL"`

	GameTablesPath string        `mapstructure:"GAME_TABLES_PATH"`
	SessionIdleTTL time.Duration `mapstructure:"SESSION_IDLE_TTL"`
}

var defaults = map[string]any{
	"ENV":              "development",
	"PORT":             "8080",
	"LOG_LEVEL":        "info",
	"REDIS_URL":        "localhost:6379",
	"REDIS_PASS":       "",
	"REDIS_DB":         0,
	"JWT_SECRET":       "",
	"TOKEN_TTL":        "24h",
	"BOT_TOKEN":        "",
	"PAYMENTS_ENABLED": false,
	"ADMIN_USERNAME":   "",
	"WEB_APP_URL":      "",
	"GAME_TABLES_PATH": "",
	"SESSION_IDLE_TTL": "30m",
}

// Load reads configuration from the process environment. Callers load
// any .env file beforehand.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret"
	}
	if cfg.PaymentsEnabled && cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required when payments are enabled")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
