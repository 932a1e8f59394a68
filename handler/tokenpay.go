package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/infra/validate"
	"github.com/mstgnz/goesewa/provider/tokenpay"
)

// TokenPayHandler serves the bearer-token flow. The session lives in the
// merchant's TokenPay instance, shared by all requests for that merchant.
type TokenPayHandler struct {
	flows     FlowRegistry
	validator *validator.Validate
}

// NewTokenPayHandler creates a new TokenPay handler
func NewTokenPayHandler(flows FlowRegistry, v *validator.Validate) *TokenPayHandler {
	return &TokenPayHandler{flows: flows, validator: v}
}

type authRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type setTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// Session describes the token held for a merchant
type Session struct {
	Authenticated bool                  `json:"authenticated"`
	Token         *tokenpay.AccessToken `json:"token,omitempty"`
}

func sessionOf(tp *tokenpay.TokenPay) Session {
	token, ok := tp.Token()
	if !ok {
		return Session{}
	}
	return Session{Authenticated: true, Token: &token}
}

func (h *TokenPayHandler) flow(w http.ResponseWriter, r *http.Request) (*tokenpay.TokenPay, bool) {
	tp, err := h.flows.TokenPay(merchantFrom(r))
	if err != nil {
		writeError(w, r, "TokenPay is not available", err)
		return nil, false
	}
	return tp, true
}

// Authenticate exchanges merchant credentials for an access token
func (h *TokenPayHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := response.ReadJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validate.Struct(h.validator, &req); err != nil {
		writeError(w, r, "Invalid authentication request", err)
		return
	}

	tp, ok := h.flow(w, r)
	if !ok {
		return
	}
	if _, err := tp.Authenticate(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, r, "Authentication failed", err)
		return
	}
	response.Success(w, http.StatusOK, "Authenticated", sessionOf(tp))
}

// RefreshToken replaces the session with one obtained from a refresh token
func (h *TokenPayHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := response.ReadJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validate.Struct(h.validator, &req); err != nil {
		writeError(w, r, "Invalid refresh request", err)
		return
	}

	tp, ok := h.flow(w, r)
	if !ok {
		return
	}
	if _, err := tp.RefreshToken(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, "Token refresh failed", err)
		return
	}
	response.Success(w, http.StatusOK, "Token refreshed", sessionOf(tp))
}

// SetAccessToken restores a stored session; an empty token signs out
func (h *TokenPayHandler) SetAccessToken(w http.ResponseWriter, r *http.Request) {
	var req setTokenRequest
	if err := response.ReadJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tp, ok := h.flow(w, r)
	if !ok {
		return
	}
	tp.SetAccessToken(req.AccessToken)

	message := "Access token set"
	if req.AccessToken == "" {
		message = "Signed out"
	}
	response.Success(w, http.StatusOK, message, Session{Authenticated: tp.IsAuthenticated()})
}

// Inquiry looks up a payment request. Query parameters are forwarded.
func (h *TokenPayHandler) Inquiry(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	tp, ok := h.flow(w, r)
	if !ok {
		return
	}
	data, err := tp.Inquiry(r.Context(), requestID, params)
	if err != nil {
		writeError(w, r, "Inquiry failed", err)
		return
	}
	response.Success(w, http.StatusOK, "Inquiry completed", data)
}

// Payment submits a payment for an inquired request
func (h *TokenPayHandler) Payment(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, "Payment", (*tokenpay.TokenPay).Payment)
}

// StatusCheck queries the state of a TokenPay transaction
func (h *TokenPayHandler) StatusCheck(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, "Status check", (*tokenpay.TokenPay).StatusCheck)
}

type transactionFunc func(*tokenpay.TokenPay, context.Context, map[string]any) (map[string]any, error)

func (h *TokenPayHandler) transaction(w http.ResponseWriter, r *http.Request, name string, call transactionFunc) {
	var payload map[string]any
	if err := response.ReadJSON(w, r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tp, ok := h.flow(w, r)
	if !ok {
		return
	}
	data, err := call(tp, r.Context(), payload)
	if err != nil {
		writeError(w, r, name+" failed", err)
		return
	}
	response.Success(w, http.StatusOK, name+" completed", data)
}
