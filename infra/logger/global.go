package logger

import (
	"sync"

	"github.com/mstgnz/goesewa/infra/config"
)

var (
	globalLogger *SystemLogger
	once         sync.Once
	mu           sync.RWMutex
)

const (
	serviceName    = "goesewa"
	serviceVersion = "1.0.0"
)

// InitGlobalLogger initializes the global system logger
func InitGlobalLogger(sink EventSink) {
	once.Do(func() {
		cfg := SystemLoggerConfig{
			EnableConsole:    true,
			EnableOpenSearch: sink != nil,
			MinLevel:         ParseLevel(config.GetEnv("LOG_LEVEL", "info")),
			Service:          serviceName,
			Version:          serviceVersion,
			Environment:      config.GetEnv("APP_ENV", "development"),
		}

		if cfg.Environment == "development" {
			cfg.MinLevel = LevelDebug
		}

		mu.Lock()
		globalLogger = NewSystemLogger(sink, cfg)
		mu.Unlock()
	})
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		// console-only until InitGlobalLogger runs
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      LevelInfo,
			Service:       serviceName,
			Version:       serviceVersion,
			Environment:   "development",
		})
	}
	return globalLogger
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithMerchant creates a context logger with the merchant product code
func WithMerchant(merchant string) *ContextLogger {
	return WithContext(LogContext{Merchant: merchant})
}

// WithFlow creates a context logger with the payment flow
func WithFlow(flow string) *ContextLogger {
	return WithContext(LogContext{Flow: flow})
}

// WithMerchantAndFlow creates a context logger with merchant and flow
func WithMerchantAndFlow(merchant, flow string) *ContextLogger {
	return WithContext(LogContext{
		Merchant: merchant,
		Flow:     flow,
	})
}
