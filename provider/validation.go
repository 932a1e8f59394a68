package provider

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var transactionUUIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// PositiveAmount fails when x is not a finite number greater than zero
func PositiveAmount(field string, x float64) error {
	if !finite(x) {
		return NewValidationError(field, "%s must be a finite number", field)
	}
	if x <= 0 {
		return NewValidationError(field, "%s must be greater than 0", field)
	}
	return nil
}

// NonNegativeAmount fails when x is below zero or not finite
func NonNegativeAmount(field string, x float64) error {
	if !finite(x) {
		return NewValidationError(field, "%s must be a finite number", field)
	}
	if x < 0 {
		return NewValidationError(field, "%s must not be negative", field)
	}
	return nil
}

// TransactionUUID accepts letters, digits and hyphens only
func TransactionUUID(s string) error {
	if !transactionUUIDPattern.MatchString(s) {
		return NewValidationError("transaction_uuid", "transaction UUID must be alphanumeric and may contain hyphens only")
	}
	return nil
}

// NonEmptyTrimmed fails when s is empty after trimming whitespace
func NonEmptyTrimmed(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return NewValidationError(field, "%s cannot be empty", field)
	}
	return nil
}

// RequireField fails when field is absent from data or nil
func RequireField(data map[string]any, field string) error {
	if v, ok := data[field]; !ok || v == nil {
		return NewValidationError(field, "%s is required", field)
	}
	return nil
}

// AmountValue converts a decoded amount to float64. Finite numbers and
// numeric strings are accepted; anything else is rejected, never coerced to
// zero. NaN and infinities are rejected in every representation.
func AmountValue(field string, v any) (float64, error) {
	f, err := amountValue(field, v)
	if err != nil {
		return 0, err
	}
	if !finite(f) {
		return 0, NewValidationError(field, "%s must be a finite number", field)
	}
	return f, nil
}

func amountValue(field string, v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, NewValidationError(field, "%s must be numeric", field)
		}
		return f, nil
	case decimal.Decimal:
		return val.InexactFloat64(), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, NewValidationError(field, "%s must be numeric", field)
		}
		return f, nil
	default:
		return 0, NewValidationError(field, "%s must be numeric", field)
	}
}

// StringValue returns v when it is a string and a validation error otherwise
func StringValue(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", NewValidationError(field, "%s must be a string", field)
	}
	return s, nil
}

// CheckAPIResponse fails with an API error when the response carries a
// non-zero code. A missing code means success.
func CheckAPIResponse(data map[string]any) error {
	raw, ok := data["code"]
	if !ok || raw == nil {
		return nil
	}

	code, isZero := responseCode(raw)
	if isZero {
		return nil
	}

	message, _ := data["message"].(string)
	if message == "" {
		message = "unknown payment gateway error"
	}
	return NewAPIError(code, message)
}

// responseCode reads the envelope code; anything that is not numerically zero is an error
func responseCode(raw any) (int, bool) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), n == 0
		}
		if f, err := v.Float64(); err == nil {
			return int(f), f == 0
		}
	case float64:
		return int(v), v == 0
	case int:
		return v, v == 0
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, n == 0
		}
	}
	return -1, false
}

// ValidateTransactionData checks the TokenPay payment and status payloads:
// request_id, amount and transaction_code, in that order.
func ValidateTransactionData(data map[string]any) error {
	if err := RequireField(data, "request_id"); err != nil {
		return err
	}
	requestID, err := StringValue("request_id", data["request_id"])
	if err != nil {
		return err
	}
	if err := NonEmptyTrimmed("request_id", requestID); err != nil {
		return err
	}

	if err := RequireField(data, "amount"); err != nil {
		return err
	}
	amount, err := AmountValue("amount", data["amount"])
	if err != nil {
		return err
	}
	if err := PositiveAmount("amount", amount); err != nil {
		return err
	}

	if err := RequireField(data, "transaction_code"); err != nil {
		return err
	}
	code, err := StringValue("transaction_code", data["transaction_code"])
	if err != nil {
		return err
	}
	return NonEmptyTrimmed("transaction_code", code)
}

// ValidateConfigFields validates a raw configuration map against field definitions
func ValidateConfigFields(flow Flow, config map[string]string, fields []ConfigField) error {
	for _, field := range fields {
		value, exists := config[field.Key]
		if !field.Required && (!exists || value == "") {
			continue
		}

		if !exists {
			return NewConfigurationError(field.Key, "%s: required field '%s' is missing", flow, field.Key)
		}

		if strings.TrimSpace(value) == "" {
			return NewConfigurationError(field.Key, "%s: required field '%s' cannot be empty", flow, field.Key)
		}

		if err := validateFieldType(flow, field, value); err != nil {
			return err
		}

		if err := validateFieldPattern(flow, field, value); err != nil {
			return err
		}

		if err := validateFieldLength(flow, field, value); err != nil {
			return err
		}
	}

	return nil
}

// validateFieldType validates field based on its type
func validateFieldType(flow Flow, field ConfigField, value string) error {
	switch field.Type {
	case "url":
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return NewConfigurationError(field.Key, "%s: field '%s' must be an absolute URL", flow, field.Key)
		}
	case "number":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return NewConfigurationError(field.Key, "%s: field '%s' must be a number", flow, field.Key)
		}
	case "boolean":
		if value != "true" && value != "false" {
			return NewConfigurationError(field.Key, "%s: field '%s' must be 'true' or 'false'", flow, field.Key)
		}
	}
	return nil
}

// validateFieldPattern validates field against regex pattern
func validateFieldPattern(flow Flow, field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return NewConfigurationError(field.Key, "%s: invalid pattern for field '%s': %v", flow, field.Key, err)
	}

	if !matched {
		return NewConfigurationError(field.Key, "%s: field '%s' does not match required pattern", flow, field.Key)
	}

	return nil
}

// validateFieldLength validates field length constraints
func validateFieldLength(flow Flow, field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return NewConfigurationError(field.Key, "%s: field '%s' must be at least %d characters", flow, field.Key, field.MinLength)
	}

	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return NewConfigurationError(field.Key, "%s: field '%s' must not exceed %d characters", flow, field.Key, field.MaxLength)
	}

	return nil
}
