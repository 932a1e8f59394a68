package tokenpay

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/provider"
)

const (
	endpointAuth    = "/access-token"
	endpointInquiry = "/inquiry"
	endpointPayment = "/payment"
	endpointStatus  = "/status"

	grantPassword = "password"
	grantRefresh  = "refresh_token"

	defaultTokenType = "Bearer"
)

// AccessToken is the bearer credential issued by the token endpoint.
// Expiry is not tracked; callers refresh when the gateway rejects it.
type AccessToken struct {
	Value        string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Header renders the Authorization header value
func (t AccessToken) Header() string {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = defaultTokenType
	}
	return tokenType + " " + t.Value
}

// TokenPay is the bearer-token payment flow. The token slot is guarded by
// a mutex, so one instance can serve concurrent callers.
type TokenPay struct {
	settings  provider.Settings
	transport provider.Transport
	recorder  provider.ExchangeRecorder
	log       *logger.ContextLogger

	mu    sync.RWMutex
	token *AccessToken
}

var _ provider.PaymentFlow = (*TokenPay)(nil)

// Option customizes a TokenPay instance
type Option func(*TokenPay)

// WithTransport replaces the default resty transport
func WithTransport(t provider.Transport) Option {
	return func(tp *TokenPay) {
		if t != nil {
			tp.transport = t
		}
	}
}

// WithRecorder records every gateway exchange
func WithRecorder(r provider.ExchangeRecorder) Option {
	return func(tp *TokenPay) {
		if r != nil {
			tp.recorder = r
		}
	}
}

// WithLogger replaces the global system logger
func WithLogger(l *logger.SystemLogger) Option {
	return func(tp *TokenPay) {
		if l != nil {
			tp.log = l.WithContext(tp.logContext())
		}
	}
}

// New validates opts and returns an unauthenticated TokenPay flow
func New(opts provider.Options, options ...Option) (*TokenPay, error) {
	settings, err := provider.Resolve(opts, provider.FlowTokenPay)
	if err != nil {
		return nil, err
	}

	tp := &TokenPay{
		settings:  settings,
		transport: provider.NewHTTPClient(nil),
		recorder:  provider.NopRecorder{},
	}
	tp.log = logger.WithContext(tp.logContext())

	for _, opt := range options {
		opt(tp)
	}
	return tp, nil
}

func (tp *TokenPay) logContext() logger.LogContext {
	return logger.LogContext{
		Merchant: tp.settings.ProductCode,
		Flow:     string(provider.FlowTokenPay),
	}
}

// Environment returns the resolved environment
func (tp *TokenPay) Environment() provider.Environment {
	return tp.settings.Environment
}

// ProductCode returns the merchant product code
func (tp *TokenPay) ProductCode() string {
	return tp.settings.ProductCode
}

// VerifySignature always returns true: this flow authenticates with a
// bearer token and its payloads carry no signature.
func (tp *TokenPay) VerifySignature(map[string]any, string) bool {
	return true
}

// Authenticate exchanges merchant credentials for an access token.
// On any failure the previous token state is kept.
func (tp *TokenPay) Authenticate(ctx context.Context, username, password string) (map[string]any, error) {
	if err := provider.NonEmptyTrimmed("username", username); err != nil {
		return nil, err
	}

	form := map[string]any{
		"grant_type":    grantPassword,
		"client_secret": base64.StdEncoding.EncodeToString([]byte(tp.settings.ClientSecret)),
		"username":      username,
		"password":      base64.StdEncoding.EncodeToString([]byte(password)),
	}
	return tp.requestToken(ctx, "authenticate", form, "authentication failed: no access token received")
}

// RefreshToken obtains a new access token from a refresh token. It does
// not require a prior Authenticate.
func (tp *TokenPay) RefreshToken(ctx context.Context, refreshToken string) (map[string]any, error) {
	if err := provider.NonEmptyTrimmed("refresh_token", refreshToken); err != nil {
		return nil, err
	}

	form := map[string]any{
		"grant_type":    grantRefresh,
		"refresh_token": refreshToken,
		"client_secret": base64.StdEncoding.EncodeToString([]byte(tp.settings.ClientSecret)),
	}
	return tp.requestToken(ctx, "refresh_token", form, "token refresh failed: no access token received")
}

func (tp *TokenPay) requestToken(ctx context.Context, operation string, form map[string]any, missing string) (map[string]any, error) {
	endpoint := provider.JoinURL(tp.settings.BaseURL(provider.URLToken), endpointAuth)
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	started := time.Now()
	data, err := tp.exchange(ctx, http.MethodPost, endpoint, form, headers)
	tp.record(ctx, operation, http.MethodPost, endpoint, form, data, started, err)
	if err != nil {
		tp.log.Error(operation+" failed", err)
		return nil, err
	}

	value, ok := provider.FieldValue(data["access_token"])
	if !ok || value == "" {
		err := provider.NewAuthError("%s", missing)
		tp.log.Error(operation+" failed", err)
		return nil, err
	}

	token := &AccessToken{Value: value, TokenType: defaultTokenType}
	if tokenType, ok := provider.FieldValue(data["token_type"]); ok && tokenType != "" {
		token.TokenType = tokenType
	}
	if refresh, ok := provider.FieldValue(data["refresh_token"]); ok {
		token.RefreshToken = refresh
	}

	tp.mu.Lock()
	tp.token = token
	tp.mu.Unlock()

	tp.log.Info(operation + " succeeded")
	return data, nil
}

// SetAccessToken restores a session without a network round trip. The
// token type of an earlier session is kept; an empty token signs out.
func (tp *TokenPay) SetAccessToken(token string) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if token == "" {
		tp.token = nil
		return
	}

	next := &AccessToken{Value: token, TokenType: defaultTokenType}
	if tp.token != nil {
		next.TokenType = tp.token.TokenType
		next.RefreshToken = tp.token.RefreshToken
	}
	tp.token = next
}

// Token returns a copy of the current access token
func (tp *TokenPay) Token() (AccessToken, bool) {
	tp.mu.RLock()
	defer tp.mu.RUnlock()

	if tp.token == nil {
		return AccessToken{}, false
	}
	return *tp.token, true
}

// IsAuthenticated reports whether a token is held
func (tp *TokenPay) IsAuthenticated() bool {
	_, ok := tp.Token()
	return ok
}

// Inquiry looks up a payment request by id. params are sent as the query string.
func (tp *TokenPay) Inquiry(ctx context.Context, requestID string, params map[string]string) (map[string]any, error) {
	headers, err := tp.authHeaders()
	if err != nil {
		return nil, err
	}
	if err := provider.NonEmptyTrimmed("request_id", requestID); err != nil {
		return nil, err
	}

	endpoint := provider.JoinURL(tp.settings.BaseURL(provider.URLToken), endpointInquiry+"/"+url.PathEscape(requestID))
	endpoint = provider.AppendQuery(endpoint, sortedQuery(params))

	started := time.Now()
	data, err := tp.exchange(ctx, http.MethodGet, endpoint, nil, headers)
	tp.record(ctx, "inquiry", http.MethodGet, endpoint, map[string]any{"request_id": requestID}, data, started, err)
	if err != nil {
		tp.log.SetRequestID(requestID).Error("inquiry failed", err)
		return nil, err
	}
	return data, nil
}

// Payment submits a payment for a previously inquired request
func (tp *TokenPay) Payment(ctx context.Context, data map[string]any) (map[string]any, error) {
	return tp.transaction(ctx, "payment", endpointPayment, data)
}

// StatusCheck queries the state of a TokenPay transaction
func (tp *TokenPay) StatusCheck(ctx context.Context, data map[string]any) (map[string]any, error) {
	return tp.transaction(ctx, "status_check", endpointStatus, data)
}

func (tp *TokenPay) transaction(ctx context.Context, operation, path string, payload map[string]any) (map[string]any, error) {
	headers, err := tp.authHeaders()
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateTransactionData(payload); err != nil {
		return nil, err
	}

	endpoint := provider.JoinURL(tp.settings.BaseURL(provider.URLToken), path)
	requestID, _ := provider.FieldValue(payload["request_id"])

	started := time.Now()
	data, err := tp.exchange(ctx, http.MethodPost, endpoint, payload, headers)
	tp.record(ctx, operation, http.MethodPost, endpoint, payload, data, started, err)
	if err != nil {
		tp.log.SetRequestID(requestID).Error(operation+" failed", err)
		return nil, err
	}

	tp.log.SetRequestID(requestID).Info(operation + " succeeded")
	return data, nil
}

// authHeaders fails without a token so protected calls never reach the transport
func (tp *TokenPay) authHeaders() (map[string]string, error) {
	token, ok := tp.Token()
	if !ok {
		return nil, provider.NewAuthError("not authenticated: call Authenticate or SetAccessToken first")
	}
	return map[string]string{
		"Authorization": token.Header(),
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}, nil
}

func (tp *TokenPay) exchange(ctx context.Context, method, endpoint string, payload map[string]any, headers map[string]string) (map[string]any, error) {
	var (
		body []byte
		err  error
	)
	if method == http.MethodGet {
		body, err = tp.transport.Get(ctx, endpoint, headers)
	} else {
		body, err = tp.transport.Post(ctx, endpoint, payload, headers)
	}
	if err != nil {
		return nil, err
	}

	data, err := provider.DecodeJSON(body)
	if err != nil {
		return nil, err
	}
	if err := provider.CheckAPIResponse(data); err != nil {
		return data, err
	}
	return data, nil
}

func (tp *TokenPay) record(ctx context.Context, operation, method, endpoint string, request, response map[string]any, started time.Time, err error) {
	ex := provider.NewExchange(provider.FlowTokenPay, operation, method, endpoint, request, response, started, err)
	if recErr := tp.recorder.RecordExchange(ctx, ex); recErr != nil {
		tp.log.Warn("failed to record exchange: " + recErr.Error())
	}
}

func sortedQuery(params map[string]string) [][2]string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := make([][2]string, 0, len(keys))
	for _, k := range keys {
		query = append(query, [2]string{k, params[k]})
	}
	return query
}
