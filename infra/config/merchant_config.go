package config

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/mstgnz/goesewa/provider"
)

// Environment variables read by LoadFromEnv
const (
	EnvEnvironment  = "ESEWA_ENVIRONMENT"
	EnvProductCode  = "ESEWA_PRODUCT_CODE"
	EnvSecretKey    = "ESEWA_SECRET_KEY"
	EnvSuccessURL   = "ESEWA_SUCCESS_URL"
	EnvFailureURL   = "ESEWA_FAILURE_URL"
	EnvClientSecret = "ESEWA_CLIENT_SECRET"
)

var envKeys = map[string]string{
	provider.KeyEnvironment:  EnvEnvironment,
	provider.KeyProductCode:  EnvProductCode,
	provider.KeySecretKey:    EnvSecretKey,
	provider.KeySuccessURL:   EnvSuccessURL,
	provider.KeyFailureURL:   EnvFailureURL,
	provider.KeyClientSecret: EnvClientSecret,
}

// MerchantConfig holds validated option maps per merchant and flow. Writes go
// to the SQLite storage first when one is attached.
type MerchantConfig struct {
	configs map[MerchantKey]map[string]string
	storage *SQLiteStorage
	mu      sync.RWMutex
}

// NewMerchantConfig returns a store backed by storage. A nil storage keeps
// everything in memory.
func NewMerchantConfig(storage *SQLiteStorage) *MerchantConfig {
	c := &MerchantConfig{
		configs: make(map[MerchantKey]map[string]string),
		storage: storage,
	}

	if storage != nil {
		configs, err := storage.LoadAllMerchantConfigs()
		if err != nil {
			log.Printf("Warning: failed to load merchant configurations: %v", err)
		} else {
			for k, v := range configs {
				c.configs[k] = v
			}
		}
	}

	return c
}

func merchantKey(merchant string, flow provider.Flow) MerchantKey {
	return MerchantKey{Merchant: strings.ToUpper(strings.TrimSpace(merchant)), Flow: string(flow)}
}

// LoadFromEnv registers the ESEWA_* variables under ESEWA_PRODUCT_CODE for
// every flow they satisfy. It fails only when no flow can be configured.
func (c *MerchantConfig) LoadFromEnv() ([]provider.Flow, error) {
	options := make(map[string]string, len(envKeys))
	for key, env := range envKeys {
		if value := GetEnv(env, ""); value != "" {
			options[key] = value
		}
	}
	if _, ok := options[provider.KeyEnvironment]; !ok {
		options[provider.KeyEnvironment] = string(provider.EnvironmentTest)
	}

	merchant := options[provider.KeyProductCode]
	if merchant == "" {
		return nil, provider.NewConfigurationError(provider.KeyProductCode, "%s is not set", EnvProductCode)
	}

	var (
		loaded   []provider.Flow
		firstErr error
	)
	for _, flow := range []provider.Flow{provider.FlowEpay, provider.FlowTokenPay} {
		if err := c.SetMerchantConfig(merchant, flow, flowOptions(flow, options)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		loaded = append(loaded, flow)
	}

	if len(loaded) == 0 {
		return nil, firstErr
	}
	return loaded, nil
}

// flowOptions keeps the keys a flow declares in RequiredConfig
func flowOptions(flow provider.Flow, options map[string]string) map[string]string {
	out := make(map[string]string)
	for _, field := range provider.RequiredConfig(flow) {
		if value, ok := options[field.Key]; ok {
			out[field.Key] = value
		}
	}
	return out
}

// SetMerchantConfig validates options for flow and stores them
func (c *MerchantConfig) SetMerchantConfig(merchant string, flow provider.Flow, options map[string]string) error {
	if strings.TrimSpace(merchant) == "" {
		return provider.NewConfigurationError("merchant", "merchant cannot be empty")
	}
	if len(options) == 0 {
		return provider.NewConfigurationError("merchant", "config cannot be empty")
	}
	if err := provider.ValidateConfigFields(flow, options, provider.RequiredConfig(flow)); err != nil {
		return err
	}
	if _, err := provider.Resolve(provider.OptionsFromMap(options), flow); err != nil {
		return err
	}

	key := merchantKey(merchant, flow)
	stored := copyOptions(options)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.SaveMerchantConfig(key.Merchant, key.Flow, stored); err != nil {
			return fmt.Errorf("failed to persist merchant config: %w", err)
		}
	}
	c.configs[key] = stored
	return nil
}

// GetMerchantConfig returns a copy of the options for merchant and flow
func (c *MerchantConfig) GetMerchantConfig(merchant string, flow provider.Flow) (map[string]string, error) {
	key := merchantKey(merchant, flow)

	c.mu.RLock()
	options, exists := c.configs[key]
	c.mu.RUnlock()

	if !exists && c.storage != nil {
		loaded, err := c.storage.LoadMerchantConfig(key.Merchant, key.Flow)
		if err != nil && !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		if err == nil {
			c.mu.Lock()
			c.configs[key] = loaded
			c.mu.Unlock()
			options, exists = loaded, true
		}
	}

	if !exists {
		return nil, fmt.Errorf("%w: merchant %s, flow %s", ErrConfigNotFound, key.Merchant, key.Flow)
	}
	return copyOptions(options), nil
}

// DeleteMerchantConfig removes the options for merchant and flow
func (c *MerchantConfig) DeleteMerchantConfig(merchant string, flow provider.Flow) error {
	key := merchantKey(merchant, flow)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.DeleteMerchantConfig(key.Merchant, key.Flow); err != nil && !errors.Is(err, ErrConfigNotFound) {
			return fmt.Errorf("failed to delete merchant config: %w", err)
		}
	}
	if _, ok := c.configs[key]; !ok && c.storage == nil {
		return fmt.Errorf("%w: merchant %s, flow %s", ErrConfigNotFound, key.Merchant, key.Flow)
	}
	delete(c.configs, key)
	return nil
}

// Merchants lists the merchants configured for flow
func (c *MerchantConfig) Merchants(flow provider.Flow) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	merchants := make([]string, 0, len(c.configs))
	for key := range c.configs {
		if key.Flow == string(flow) {
			merchants = append(merchants, key.Merchant)
		}
	}
	sort.Strings(merchants)
	return merchants
}

// GetStats returns in-memory and storage statistics
func (c *MerchantConfig) GetStats() map[string]any {
	c.mu.RLock()
	stats := map[string]any{"memory_configs": len(c.configs)}
	c.mu.RUnlock()

	if c.storage == nil {
		stats["sqlite"] = "not_available"
		return stats
	}
	storageStats, err := c.storage.GetStats()
	if err != nil {
		stats["sqlite_error"] = err.Error()
	} else {
		stats["sqlite"] = storageStats
	}
	return stats
}

func copyOptions(options map[string]string) map[string]string {
	out := make(map[string]string, len(options))
	for k, v := range options {
		out[k] = v
	}
	return out
}
