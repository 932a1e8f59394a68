package provider

import (
	"context"
	"strings"
	"time"
)

// Exchange describes one request/response round trip with the gateway
type Exchange struct {
	Flow       Flow           `json:"flow"`
	Operation  string         `json:"operation"`
	Method     string         `json:"method"`
	URL        string         `json:"url"`
	RequestID  string         `json:"request_id,omitempty"`
	Request    map[string]any `json:"request,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Duration   time.Duration  `json:"-"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ExchangeRecorder receives every gateway exchange after it completes.
// Recording failures never fail the payment operation.
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, exchange Exchange) error
}

// NopRecorder discards exchanges
type NopRecorder struct{}

// RecordExchange implements ExchangeRecorder
func (NopRecorder) RecordExchange(context.Context, Exchange) error { return nil }

// NewExchange builds an exchange with sanitized request and response payloads
func NewExchange(flow Flow, operation, method, url string, request, response map[string]any, started time.Time, err error) Exchange {
	ex := Exchange{
		Flow:      flow,
		Operation: operation,
		Method:    method,
		URL:       url,
		Request:   SanitizeForLog(request),
		Response:  SanitizeForLog(response),
		Duration:  time.Since(started),
		Timestamp: started.UTC(),
	}
	if id, ok := FieldValue(request["transaction_uuid"]); ok {
		ex.RequestID = id
	} else if id, ok := FieldValue(request["request_id"]); ok {
		ex.RequestID = id
	}
	if err != nil {
		ex.Error = err.Error()
		if e, ok := err.(*Error); ok && e.Kind == KindTransport {
			ex.StatusCode = e.Code
		}
	}
	return ex
}

// sensitiveFields are masked wherever they occur in a logged payload
var sensitiveFields = []string{
	"secret", "password", "access_token", "refresh_token", "signature", "token",
}

// SanitizeForLog removes sensitive information from data before logging
func SanitizeForLog(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	return sanitizeMap(data)
}

// sanitizeRecursive recursively sanitizes nested objects and arrays
func sanitizeRecursive(data any) any {
	switch v := data.(type) {
	case map[string]any:
		return sanitizeMap(v)
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = sanitizeRecursive(item)
		}
		return result
	default:
		return v
	}
}

func sanitizeMap(data map[string]any) map[string]any {
	sanitized := make(map[string]any, len(data))
	for key, value := range data {
		if isSensitive(key) {
			if s, ok := value.(string); ok {
				sanitized[key] = maskSensitive(s)
			} else {
				sanitized[key] = "***REDACTED***"
			}
			continue
		}
		sanitized[key] = sanitizeRecursive(value)
	}
	return sanitized
}

func isSensitive(key string) bool {
	keyLower := strings.ToLower(key)
	for _, field := range sensitiveFields {
		if strings.Contains(keyLower, field) {
			return true
		}
	}
	return false
}

// maskSensitive keeps the first and last two characters of longer values
func maskSensitive(value string) string {
	if len(value) <= 8 {
		return "***REDACTED***"
	}
	return value[:2] + "***" + value[len(value)-2:]
}
