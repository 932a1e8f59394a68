package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appEnvKeys = []string{
	"APP_PORT",
	"APP_ENV",
	"LOG_LEVEL",
	"OPENSEARCH_URL",
	"OPENSEARCH_USER",
	"OPENSEARCH_PASSWORD",
	"ENABLE_OPENSEARCH_LOGGING",
	"LOG_RETENTION_DAYS",
	"SQLITE_PATH",
	"API_KEY",
	"IP_WHITELIST",
	"RATE_LIMIT",
	"AUTH_RATE_LIMIT",
	"TRUST_PROXY",
}

// unsetEnv clears keys for the duration of the test
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadAppConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *AppConfig
	}{
		{
			name:    "default_values",
			envVars: map[string]string{},
			expected: &AppConfig{
				Port:             "9999",
				Environment:      "development",
				LogLevel:         "info",
				OpenSearchURL:    "http://localhost:9200",
				EnableLogging:    false,
				LogRetentionDays: 30,
				SQLitePath:       "data/goesewa.db",
				RateLimit:        100,
				AuthRateLimit:    10,
			},
		},
		{
			name: "custom_values",
			envVars: map[string]string{
				"APP_PORT":                  "8080",
				"APP_ENV":                   "production",
				"LOG_LEVEL":                 "debug",
				"OPENSEARCH_URL":            "https://search.example.com:9200",
				"OPENSEARCH_USER":           "testuser",
				"OPENSEARCH_PASSWORD":       "testpass",
				"ENABLE_OPENSEARCH_LOGGING": "true",
				"LOG_RETENTION_DAYS":        "60",
				"SQLITE_PATH":               "/tmp/esewa.db",
				"API_KEY":                   "k3y",
				"IP_WHITELIST":              "10.0.0.1,10.0.0.2",
				"RATE_LIMIT":                "50",
				"AUTH_RATE_LIMIT":           "5",
				"TRUST_PROXY":               "true",
			},
			expected: &AppConfig{
				Port:             "8080",
				Environment:      "production",
				LogLevel:         "debug",
				OpenSearchURL:    "https://search.example.com:9200",
				OpenSearchUser:   "testuser",
				OpenSearchPass:   "testpass",
				EnableLogging:    true,
				LogRetentionDays: 60,
				SQLitePath:       "/tmp/esewa.db",
				APIKey:           "k3y",
				IPWhitelist:      []string{"10.0.0.1", "10.0.0.2"},
				RateLimit:        50,
				AuthRateLimit:    5,
				TrustProxy:       true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, appEnvKeys...)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := LoadAppConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestLoadAppConfig_InvalidValue(t *testing.T) {
	unsetEnv(t, appEnvKeys...)
	t.Setenv("ENABLE_OPENSEARCH_LOGGING", "invalid")

	cfg, err := LoadAppConfig()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "load config")
}

func TestAppConfig_IsProduction(t *testing.T) {
	assert.True(t, (&AppConfig{Environment: "production"}).IsProduction())
	assert.False(t, (&AppConfig{Environment: "development"}).IsProduction())
	assert.False(t, (&AppConfig{}).IsProduction())
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		set          bool
		defaultValue string
		expected     string
	}{
		{"existing_env_var", "GOESEWA_TEST_STRING", "test-value", true, "default", "test-value"},
		{"non_existing_env_var", "GOESEWA_TEST_MISSING", "", false, "default", "default"},
		{"empty_env_var", "GOESEWA_TEST_EMPTY", "", true, "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, tt.key)
			if tt.set {
				t.Setenv(tt.key, tt.value)
			}
			assert.Equal(t, tt.expected, GetEnv(tt.key, tt.defaultValue))
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		expected     bool
	}{
		{"true_value", "true", false, true},
		{"one_value", "1", false, true},
		{"false_value", "false", true, false},
		{"zero_value", "0", true, false},
		{"invalid_value_uses_default", "yes-please", true, true},
		{"empty_value_uses_default", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOESEWA_TEST_BOOL", tt.value)
			assert.Equal(t, tt.expected, GetBoolEnv("GOESEWA_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetIntEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		expected     int
	}{
		{"valid_int", "42", 0, 42},
		{"negative_int", "-7", 0, -7},
		{"invalid_int_uses_default", "abc", 30, 30},
		{"float_uses_default", "1.5", 30, 30},
		{"empty_uses_default", "", 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOESEWA_TEST_INT", tt.value)
			assert.Equal(t, tt.expected, GetIntEnv("GOESEWA_TEST_INT", tt.defaultValue))
		})
	}
}
