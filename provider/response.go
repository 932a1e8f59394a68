package provider

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DecodeJSON parses a gateway body into a map. Numbers are kept as
// json.Number so signed numeric fields survive with their original text.
func DecodeJSON(body []byte) (map[string]any, error) {
	return decodeJSON(body, "invalid JSON response")
}

func decodeJSON(body []byte, message string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, NewDecodeError(message, err)
	}
	if data == nil {
		return nil, NewDecodeError(message, nil)
	}
	return data, nil
}

// DecodeEnvelope decodes the base64 JSON document eSewa appends to the
// success redirect. Standard encoding is tried first, then the URL-safe
// alphabet, each with and without padding.
func DecodeEnvelope(encoded string) (map[string]any, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, NewDecodeError("invalid base64 encoded data", nil)
	}

	var (
		raw []byte
		err error
	)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		raw, err = enc.DecodeString(encoded)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, NewDecodeError("invalid base64 encoded data", err)
	}

	return decodeJSON(raw, "invalid JSON in decoded data")
}
