package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Field is one name=value pair of a canonical string
type Field struct {
	Name  string
	Value string
}

// Sign returns base64(HMAC-SHA256(canonical, secretKey))
func Sign(canonical, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// CanonicalString joins fields as name=value pairs separated by commas,
// keeping the order the caller supplied.
func CanonicalString(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + "=" + f.Value
	}
	return strings.Join(parts, ",")
}

// FormatDecimal is the canonical amount text used for signing: the shortest
// plain decimal representation, without exponent or trailing zeros.
func FormatDecimal(d decimal.Decimal) string {
	return d.String()
}

// FormatAmount formats a float amount with FormatDecimal
func FormatAmount(v float64) string {
	return FormatDecimal(decimal.NewFromFloat(v))
}

// FieldValue renders a decoded field value as it takes part in a canonical
// string. JSON numbers decoded with UseNumber keep the gateway's literal.
// A nil value is reported as absent.
func FieldValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case decimal.Decimal:
		return FormatDecimal(val), true
	case float64:
		return FormatAmount(val), true
	case float32:
		return FormatAmount(float64(val)), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

// SplitFieldNames splits a signed_field_names value into its names
func SplitFieldNames(signedFieldNames string) []string {
	names := strings.Split(signedFieldNames, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names
}

// SignedFields collects the fields listed in signedFieldNames from data, in
// that order. The first absent field is reported as a signature error.
func SignedFields(data map[string]any, signedFieldNames string) ([]Field, error) {
	names := SplitFieldNames(signedFieldNames)
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		value, ok := FieldValue(data[name])
		if !ok {
			return nil, NewSignatureError(name, "missing signed field: %s", name)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	return fields, nil
}

// Verify rebuilds the canonical string in signedFieldNames order and compares
// the recomputed signature with signature in constant time. A mismatch is
// reported as false with a nil error; an absent field is a signature error.
func Verify(data map[string]any, signedFieldNames, signature, secretKey string) (bool, error) {
	fields, err := SignedFields(data, signedFieldNames)
	if err != nil {
		return false, err
	}
	expected := Sign(CanonicalString(fields), secretKey)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
