package provider

import "strings"

// Environment selects the eSewa host pair a flow talks to
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// URLKind selects which of the two eSewa hosts is meant
type URLKind string

const (
	URLPayment URLKind = "payment" // ePay form, status endpoints
	URLToken   URLKind = "token"   // TokenPay endpoints
)

// Flow names a payment flow; it decides which configuration fields are required
type Flow string

const (
	FlowEpay     Flow = "epay"
	FlowTokenPay Flow = "tokenpay"
)

// Option keys accepted by OptionsFromMap and the configuration storage
const (
	KeyEnvironment  = "environment"
	KeyProductCode  = "product_code"
	KeySecretKey    = "secret_key"
	KeySuccessURL   = "success_url"
	KeyFailureURL   = "failure_url"
	KeyClientSecret = "client_secret"
)

var baseURLs = map[Environment]map[URLKind]string{
	EnvironmentTest: {
		URLPayment: "https://rc-epay.esewa.com.np",
		URLToken:   "https://uat.esewa.com.np",
	},
	EnvironmentProduction: {
		URLPayment: "https://epay.esewa.com.np",
		URLToken:   "https://esewa.com.np",
	},
}

// BaseURL returns the static base URL for the environment and kind.
// It returns an empty string for an unknown environment or kind.
func BaseURL(env Environment, kind URLKind) string {
	return baseURLs[env][kind]
}

// Options is the raw, caller-supplied configuration of a flow
type Options struct {
	Environment  string `json:"environment,omitempty"`
	ProductCode  string `json:"product_code"`
	SecretKey    string `json:"secret_key"`
	SuccessURL   string `json:"success_url,omitempty"`
	FailureURL   string `json:"failure_url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Settings is a validated configuration owned by exactly one flow instance.
// Environment is fixed once resolved.
type Settings struct {
	Environment  Environment
	ProductCode  string
	SecretKey    string
	SuccessURL   string
	FailureURL   string
	ClientSecret string
}

// BaseURL returns the environment-specific URL for kind
func (s Settings) BaseURL(kind URLKind) string {
	return BaseURL(s.Environment, kind)
}

// OptionsFromMap reads the snake_case option keys into Options
func OptionsFromMap(conf map[string]string) Options {
	return Options{
		Environment:  conf[KeyEnvironment],
		ProductCode:  conf[KeyProductCode],
		SecretKey:    conf[KeySecretKey],
		SuccessURL:   conf[KeySuccessURL],
		FailureURL:   conf[KeyFailureURL],
		ClientSecret: conf[KeyClientSecret],
	}
}

// Map is the inverse of OptionsFromMap; empty values are left out
func (o Options) Map() map[string]string {
	out := make(map[string]string)
	for k, v := range map[string]string{
		KeyEnvironment:  o.Environment,
		KeyProductCode:  o.ProductCode,
		KeySecretKey:    o.SecretKey,
		KeySuccessURL:   o.SuccessURL,
		KeyFailureURL:   o.FailureURL,
		KeyClientSecret: o.ClientSecret,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Resolve validates opts for flow and returns the resolved settings.
// Checks run in a fixed order and the first failure is reported:
// environment, product_code, secret_key, then the flow-specific fields.
func Resolve(opts Options, flow Flow) (Settings, error) {
	env := Environment(opts.Environment)
	if env == "" {
		env = EnvironmentTest
	}
	if _, ok := baseURLs[env]; !ok {
		return Settings{}, NewConfigurationError(KeyEnvironment, `environment must be either "test" or "production", got %q`, opts.Environment)
	}

	if strings.TrimSpace(opts.ProductCode) == "" {
		return Settings{}, NewConfigurationError(KeyProductCode, "product code is required")
	}
	if strings.TrimSpace(opts.SecretKey) == "" {
		return Settings{}, NewConfigurationError(KeySecretKey, "secret key is required")
	}

	settings := Settings{
		Environment: env,
		ProductCode: opts.ProductCode,
		SecretKey:   opts.SecretKey,
	}

	switch flow {
	case FlowEpay:
		if strings.TrimSpace(opts.SuccessURL) == "" {
			return Settings{}, NewConfigurationError(KeySuccessURL, "success URL is required")
		}
		if strings.TrimSpace(opts.FailureURL) == "" {
			return Settings{}, NewConfigurationError(KeyFailureURL, "failure URL is required")
		}
		settings.SuccessURL = opts.SuccessURL
		settings.FailureURL = opts.FailureURL
	case FlowTokenPay:
		if strings.TrimSpace(opts.ClientSecret) == "" {
			return Settings{}, NewConfigurationError(KeyClientSecret, "client secret is required for token-based authentication")
		}
		settings.ClientSecret = opts.ClientSecret
	default:
		return Settings{}, NewConfigurationError("flow", "unknown flow %q", flow)
	}

	return settings, nil
}

// RequiredConfig returns the configuration fields of a flow
func RequiredConfig(flow Flow) []ConfigField {
	fields := []ConfigField{
		{
			Key:         KeyEnvironment,
			Required:    false,
			Type:        "string",
			Description: "eSewa environment (test or production)",
			Example:     "test",
			Pattern:     "^(test|production)$",
		},
		{
			Key:         KeyProductCode,
			Required:    true,
			Type:        "string",
			Description: "Merchant product code issued by eSewa",
			Example:     "EPAYTEST",
			MinLength:   2,
			MaxLength:   64,
		},
		{
			Key:         KeySecretKey,
			Required:    true,
			Type:        "string",
			Description: "HMAC secret key issued by eSewa",
			Example:     "8gBm/:&EnhH.1/q",
			MinLength:   4,
		},
	}

	switch flow {
	case FlowEpay:
		fields = append(fields,
			ConfigField{
				Key:         KeySuccessURL,
				Required:    true,
				Type:        "url",
				Description: "URL eSewa redirects to after a successful payment",
				Example:     "https://merchant.example.com/esewa/success",
			},
			ConfigField{
				Key:         KeyFailureURL,
				Required:    true,
				Type:        "url",
				Description: "URL eSewa redirects to after a failed payment",
				Example:     "https://merchant.example.com/esewa/failure",
			},
		)
	case FlowTokenPay:
		fields = append(fields, ConfigField{
			Key:         KeyClientSecret,
			Required:    true,
			Type:        "string",
			Description: "Client secret for the token API",
			Example:     "client-secret",
		})
	}

	return fields
}
