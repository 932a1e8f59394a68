package provider

// ConfigField represents a configuration field of a payment flow
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	Pattern     string `json:"pattern,omitempty"`   // regex pattern for validation
	MinLength   int    `json:"minLength,omitempty"` // minimum length for string fields
	MaxLength   int    `json:"maxLength,omitempty"` // maximum length for string fields
}

// PaymentFlow is implemented by both the ePay and the TokenPay flow
type PaymentFlow interface {
	// Environment returns the resolved environment of the flow
	Environment() Environment

	// ProductCode returns the merchant product code
	ProductCode() string

	// VerifySignature reports whether data carries a valid signature.
	// TokenPay authenticates with bearer tokens and always returns true.
	VerifySignature(data map[string]any, signature string) bool
}
