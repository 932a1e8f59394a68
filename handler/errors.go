package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mstgnz/goesewa/infra/config"
	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/infra/middle"
	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/provider"
	"github.com/mstgnz/goesewa/service"
)

// MerchantHeader selects the merchant a request acts for. Requests without
// it act for the default merchant.
const MerchantHeader = "X-Merchant-Code"

func merchantFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(MerchantHeader))
}

// statusFor maps a flow error kind to an HTTP status
func statusFor(err error) int {
	switch provider.KindOf(err) {
	case provider.KindValidation, provider.KindDecode, provider.KindSignature:
		return http.StatusBadRequest
	case provider.KindAuth:
		return http.StatusUnauthorized
	case provider.KindAPI:
		return http.StatusUnprocessableEntity
	case provider.KindTransport:
		return http.StatusBadGateway
	}
	if errors.Is(err, service.ErrUnknownMerchant) || errors.Is(err, config.ErrConfigNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// errorDetails exposes the field and gateway code of a flow error
func errorDetails(err error) map[string]any {
	var e *provider.Error
	if !errors.As(err, &e) {
		return nil
	}
	details := map[string]any{"kind": e.Kind}
	if e.Field != "" {
		details["field"] = e.Field
	}
	if e.Kind == provider.KindAPI || (e.Kind == provider.KindTransport && e.Code != 0) {
		details["code"] = e.Code
	}
	return details
}

// writeError answers with the status matching err. Server side failures are
// logged; their message is not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(message, err, logger.LogContext{
			Merchant:  merchantFrom(r),
			Flow:      middle.FlowFromPath(r.URL.Path),
			RequestID: middle.GetRequestID(r.Context()),
		})
	}
	if status == http.StatusInternalServerError {
		response.Error(w, status, message, errors.New("internal error"))
		return
	}
	if details := errorDetails(err); details != nil {
		response.ErrorWithData(w, status, message, err, details)
		return
	}
	response.Error(w, status, message, err)
}
