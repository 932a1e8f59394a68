// Package goesewa is a client for the eSewa payment gateway. It covers the two
// integration styles eSewa offers to merchants and can also run as a small
// HTTP service in front of them.
//
// # Overview
//
// eSewa exposes two unrelated flows:
//
//   - ePay: the shopper is redirected to eSewa with an HMAC-signed form.
//     eSewa redirects back with a base64 JSON document that carries its own
//     signature. The merchant can also query the transaction status.
//   - TokenPay: the merchant authenticates with username and password,
//     receives a bearer token and calls the inquiry, payment and status
//     endpoints with it. Payloads are not signed.
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│  Merchant App   │◄──►│     goesewa     │◄──►│      eSewa      │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Quick Start
//
//	e, err := goesewa.NewEpay(map[string]string{
//	    "environment":  "test",
//	    "product_code": "EPAYTEST",
//	    "secret_key":   "8gBm/:&EnhH.1/q",
//	    "success_url":  "https://merchant.example.com/esewa/success",
//	    "failure_url":  "https://merchant.example.com/esewa/failure",
//	})
//	if err != nil {
//	    return err
//	}
//
//	payment, err := e.CreatePayment(epay.PaymentRequest{
//	    Amount:          100,
//	    TaxAmount:       10,
//	    TransactionUUID: "241028-001",
//	})
//	// POST payment.Fields() to e.FormActionURL() from the browser.
//
//	// On the success URL:
//	data, err := e.VerifyPayment(r.URL.Query().Get("data"))
//
// TokenPay:
//
//	tp, err := goesewa.NewTokenPay(map[string]string{
//	    "product_code":  "EPAYTEST",
//	    "secret_key":    "8gBm/:&EnhH.1/q",
//	    "client_secret": "client-secret",
//	})
//	if _, err := tp.Authenticate(ctx, "merchant", "password"); err != nil {
//	    return err
//	}
//	details, err := tp.Inquiry(ctx, "REQ1", nil)
//
// # Environments
//
// "test" talks to rc-epay.esewa.com.np and uat.esewa.com.np, "production"
// to epay.esewa.com.np and esewa.com.np. The environment is fixed when the
// flow is created.
//
// # Errors
//
// Every failure is a *provider.Error. Use errors.Is with the provider
// sentinels (ErrValidation, ErrSignature, ErrAuth, ...) to branch on kind.
// Nothing is retried.
//
// # HTTP API
//
//	POST /v1/epay/payments
//	GET  /v1/epay/verify?data=...
//	GET  /v1/epay/status?transaction_uuid=...&total_amount=...
//	POST /v1/tokenpay/auth
//	POST /v1/tokenpay/refresh
//	PUT  /v1/tokenpay/token
//	GET  /v1/tokenpay/inquiry/{requestID}
//	POST /v1/tokenpay/payment
//	POST /v1/tokenpay/status
//	GET  /v1/config/{flow}/fields
//	PUT  /v1/config/{flow}
//	GET  /v1/logs/{flow}?hours=24&operation=...
//	GET  /health
//
// The merchant is picked with the X-Merchant-Code header. /v1 requires
// "Authorization: Bearer $API_KEY" when API_KEY is set.
//
// # Configuration
//
//	ESEWA_ENVIRONMENT=test
//	ESEWA_PRODUCT_CODE=EPAYTEST
//	ESEWA_SECRET_KEY=...
//	ESEWA_SUCCESS_URL=...
//	ESEWA_FAILURE_URL=...
//	ESEWA_CLIENT_SECRET=...
//
// Gateway exchanges and system logs can be shipped to OpenSearch.
package goesewa
