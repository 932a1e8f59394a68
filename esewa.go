package goesewa

import (
	"github.com/mstgnz/goesewa/provider"
	"github.com/mstgnz/goesewa/provider/epay"
	"github.com/mstgnz/goesewa/provider/tokenpay"
)

// NewEpay creates a configured ePay flow from snake_case options.
// Required: product_code, secret_key, success_url, failure_url.
// Optional: environment ("test" by default).
func NewEpay(options map[string]string, opts ...epay.Option) (*epay.Epay, error) {
	return epay.New(provider.OptionsFromMap(options), opts...)
}

// NewTokenPay creates a configured TokenPay flow from snake_case options.
// Required: product_code, secret_key, client_secret.
// Optional: environment ("test" by default).
func NewTokenPay(options map[string]string, opts ...tokenpay.Option) (*tokenpay.TokenPay, error) {
	return tokenpay.New(provider.OptionsFromMap(options), opts...)
}
