package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

// AppConfig represents the application configuration. Values come from the
// environment; cmd loads a .env file first when one exists.
type AppConfig struct {
	Port             string `env:"APP_PORT" env-default:"9999" env-description:"HTTP listen port"`
	Environment      string `env:"APP_ENV" env-default:"development" env-description:"development or production"`
	LogLevel         string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	OpenSearchURL    string `env:"OPENSEARCH_URL" env-default:"http://localhost:9200"`
	OpenSearchUser   string `env:"OPENSEARCH_USER"`
	OpenSearchPass   string `env:"OPENSEARCH_PASSWORD"`
	EnableLogging    bool   `env:"ENABLE_OPENSEARCH_LOGGING" env-default:"false" env-description:"ship exchanges and system logs to OpenSearch"`
	LogRetentionDays int    `env:"LOG_RETENTION_DAYS" env-default:"30"`
	SQLitePath       string `env:"SQLITE_PATH" env-default:"data/goesewa.db" env-description:"merchant configuration store"`

	APIKey        string   `env:"API_KEY" env-description:"bearer key for /v1; empty disables the check"`
	IPWhitelist   []string `env:"IP_WHITELIST" env-separator:"," env-description:"comma separated client IPs allowed on /v1"`
	RateLimit     int      `env:"RATE_LIMIT" env-default:"100" env-description:"requests per minute per client"`
	AuthRateLimit int      `env:"AUTH_RATE_LIMIT" env-default:"10" env-description:"TokenPay auth attempts per minute per client"`
	TrustProxy    bool     `env:"TRUST_PROXY" env-default:"false" env-description:"take the client IP from X-Forwarded-For / X-Real-IP"`
}

var (
	appConfigInstance *AppConfig
	appConfigOnce     sync.Once
	appConfigErr      error
)

// LoadAppConfig reads a fresh AppConfig from the environment
func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		desc, _ := cleanenv.GetDescription(cfg, nil)
		return nil, fmt.Errorf("load config: %w; %s", err, desc)
	}
	return cfg, nil
}

// GetAppConfig returns the process-wide configuration, loading it once
func GetAppConfig() (*AppConfig, error) {
	appConfigOnce.Do(func() {
		appConfigInstance, appConfigErr = LoadAppConfig()
	})
	return appConfigInstance, appConfigErr
}

// IsProduction reports whether APP_ENV is production
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
