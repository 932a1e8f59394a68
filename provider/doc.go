// Package provider holds the pieces shared by the eSewa flows: configuration
// resolution, HMAC signing, validation, the HTTP transport, exchange records
// and the error model. The flows themselves live in provider/epay and
// provider/tokenpay.
//
// # Core Concepts
//
//   - Options / Settings: raw merchant configuration and its resolved form.
//     Resolve fills the base URLs for the chosen environment and rejects
//     missing credentials before any flow is built.
//   - Sign / Verify: HMAC-SHA256 over "name=value" pairs joined by commas,
//     base64 encoded. The order of the pairs is the order of the signed
//     field names.
//   - Transport: GET and POST returning the raw body. HTTPClient is the
//     resty backed implementation; tests substitute their own.
//   - Exchange / ExchangeRecorder: one record per call to eSewa, sanitized
//     before it leaves the process.
//   - Error: every failure carries an ErrorKind.
//
// # Signing
//
//	fields := []provider.Field{
//	    {Name: "total_amount", Value: "100"},
//	    {Name: "transaction_uuid", Value: "test-uuid-12345"},
//	    {Name: "product_code", Value: "EPAYTEST"},
//	}
//	sig := provider.Sign(provider.CanonicalString(fields), secretKey)
//
// Verification reads the order from the signed_field_names member of the
// document being checked:
//
//	ok, err := provider.Verify(data, data["signed_field_names"].(string), signature, secretKey)
//
// # Configuration
//
//	opts := provider.OptionsFromMap(map[string]string{
//	    "environment":  "test",
//	    "product_code": "EPAYTEST",
//	    "secret_key":   "8gBm/:&EnhH.1/q",
//	})
//	settings, err := provider.Resolve(opts, provider.FlowEpay)
//
// RequiredConfig lists the keys a flow needs, which the HTTP service exposes
// so operators know what to send.
//
// # Error Handling
//
//	switch provider.KindOf(err) {
//	case provider.KindValidation:
//	    // bad input, nothing was sent
//	case provider.KindAPI:
//	    // eSewa answered with a failure code
//	case provider.KindTransport:
//	    // network failure or non-2xx status
//	}
//
// errors.Is also works against the Err* sentinels. Nothing is retried.
//
// # Thread Safety
//
// Settings are immutable once resolved. HTTPClient is safe for concurrent
// use.
package provider
