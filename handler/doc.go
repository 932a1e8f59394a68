// Package handler provides the HTTP handlers of the goesewa service.
//
// # Core Handlers
//
//   - EpayHandler: builds signed payment forms, verifies callbacks and
//     queries transaction status.
//   - TokenPayHandler: manages the TokenPay session and relays inquiry,
//     payment and status calls.
//   - ConfigHandler: stores merchant credentials per flow.
//   - LogsHandler: searches exchange logs kept in OpenSearch.
//   - HealthHandler: reports storage, merchant and host health.
//
// # Merchant Selection
//
// Every flow request is served for one merchant. It comes from the
// X-Merchant-Code header and falls back to the merchant configured through
// ESEWA_PRODUCT_CODE. Verification also accepts the product_code carried by
// the callback document.
//
// # Response Format
//
//	{
//	  "success": true,
//	  "message": "Payment created",
//	  "data": {
//	    "form_action_url": "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
//	    "fields": {"total_amount": "100", "signature": "..."}
//	  }
//	}
//
// Errors use the same envelope with success false. The status code follows
// the error kind:
//
//	validation, decode, signature  400
//	auth                           401
//	unknown merchant               404
//	api                            422
//	transport                      502
//	anything else                  500
//
// Responses never echo secret keys, passwords or tokens beyond the one the
// caller just obtained.
package handler
