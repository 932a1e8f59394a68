package tokenpay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method  string
	url     string
	data    map[string]any
	headers map[string]string
}

// fakeTransport answers every request with the next queued body
type fakeTransport struct {
	mu     sync.Mutex
	calls  []call
	bodies []string
	err    error
}

func (f *fakeTransport) next(c call) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.bodies) == 0 {
		return []byte(`{}`), nil
	}
	body := f.bodies[0]
	f.bodies = f.bodies[1:]
	return []byte(body), nil
}

func (f *fakeTransport) Get(_ context.Context, url string, headers map[string]string) ([]byte, error) {
	return f.next(call{method: http.MethodGet, url: url, headers: headers})
}

func (f *fakeTransport) Post(_ context.Context, url string, data map[string]any, headers map[string]string) ([]byte, error) {
	return f.next(call{method: http.MethodPost, url: url, data: data, headers: headers})
}

func testOptions() provider.Options {
	return provider.Options{
		ProductCode:  "EPAYTEST",
		SecretKey:    "test-secret-key",
		ClientSecret: "client-secret",
	}
}

func newTestTokenPay(t *testing.T, transport provider.Transport) *TokenPay {
	t.Helper()
	quiet := logger.NewSystemLogger(nil, logger.SystemLoggerConfig{MinLevel: logger.LevelFatal})
	tp, err := New(testOptions(), WithTransport(transport), WithLogger(quiet))
	require.NoError(t, err)
	return tp
}

func validTransaction() map[string]any {
	return map[string]any{
		"request_id":       "REQ1",
		"amount":           100.0,
		"transaction_code": "TXN1",
	}
}

func TestNew(t *testing.T) {
	tp := newTestTokenPay(t, &fakeTransport{})
	assert.Equal(t, provider.EnvironmentTest, tp.Environment())
	assert.Equal(t, "EPAYTEST", tp.ProductCode())
	assert.False(t, tp.IsAuthenticated())
}

func TestNew_RequiresClientSecret(t *testing.T) {
	opts := testOptions()
	opts.ClientSecret = ""

	_, err := New(opts)
	require.ErrorIs(t, err, provider.ErrConfiguration)
	assert.Contains(t, err.Error(), "client secret is required")
}

func TestAuthenticate(t *testing.T) {
	transport := &fakeTransport{bodies: []string{`{"access_token":"T","token_type":"Bearer","refresh_token":"R","expires_in":3600}`}}
	tp := newTestTokenPay(t, transport)

	data, err := tp.Authenticate(context.Background(), "merchant", "p@ss")
	require.NoError(t, err)
	assert.Equal(t, "T", data["access_token"])

	require.Len(t, transport.calls, 1)
	c := transport.calls[0]
	assert.Equal(t, http.MethodPost, c.method)
	assert.Equal(t, "https://uat.esewa.com.np/access-token", c.url)
	assert.Equal(t, "password", c.data["grant_type"])
	assert.Equal(t, "merchant", c.data["username"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("p@ss")), c.data["password"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("client-secret")), c.data["client_secret"])

	token, ok := tp.Token()
	require.True(t, ok)
	assert.Equal(t, AccessToken{Value: "T", TokenType: "Bearer", RefreshToken: "R"}, token)
}

func TestAuthenticate_DefaultTokenType(t *testing.T) {
	tp := newTestTokenPay(t, &fakeTransport{bodies: []string{`{"access_token":"T"}`}})

	_, err := tp.Authenticate(context.Background(), "u", "p")
	require.NoError(t, err)

	token, _ := tp.Token()
	assert.Equal(t, "Bearer T", token.Header())
}

func TestAuthenticate_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		kind provider.ErrorKind
	}{
		{"invalid json", `not-json`, nil, provider.KindDecode},
		{"api error", `{"code":401,"message":"Invalid credentials"}`, nil, provider.KindAPI},
		{"no token", `{"token_type":"Bearer"}`, nil, provider.KindAuth},
		{"empty token", `{"access_token":""}`, nil, provider.KindAuth},
		{"transport", "", provider.NewTransportError(500, "HTTP error 500", nil), provider.KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestTokenPay(t, &fakeTransport{bodies: []string{tt.body}, err: tt.err})

			_, err := tp.Authenticate(context.Background(), "u", "p")
			require.Error(t, err)
			assert.Equal(t, tt.kind, provider.KindOf(err))
			assert.False(t, tp.IsAuthenticated())
		})
	}
}

func TestAuthenticate_FailureKeepsPreviousToken(t *testing.T) {
	tp := newTestTokenPay(t, &fakeTransport{bodies: []string{`{"code":1,"message":"locked"}`}})
	tp.SetAccessToken("OLD")

	_, err := tp.Authenticate(context.Background(), "u", "p")
	require.ErrorIs(t, err, provider.ErrAPI)

	token, ok := tp.Token()
	require.True(t, ok)
	assert.Equal(t, "OLD", token.Value)
}

func TestRefreshToken(t *testing.T) {
	transport := &fakeTransport{bodies: []string{`{"access_token":"T2","token_type":"Token"}`}}
	tp := newTestTokenPay(t, transport)

	_, err := tp.RefreshToken(context.Background(), "R1")
	require.NoError(t, err)

	c := transport.calls[0]
	assert.Equal(t, "https://uat.esewa.com.np/access-token", c.url)
	assert.Equal(t, "refresh_token", c.data["grant_type"])
	assert.Equal(t, "R1", c.data["refresh_token"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("client-secret")), c.data["client_secret"])

	token, ok := tp.Token()
	require.True(t, ok)
	assert.Equal(t, "Token T2", token.Header())
}

func TestRefreshToken_Failure(t *testing.T) {
	tp := newTestTokenPay(t, &fakeTransport{bodies: []string{`{}`}})

	_, err := tp.RefreshToken(context.Background(), "R1")
	require.ErrorIs(t, err, provider.ErrAuth)
	assert.Contains(t, err.Error(), "token refresh failed")
	assert.False(t, tp.IsAuthenticated())

	_, err = tp.RefreshToken(context.Background(), " ")
	assert.ErrorIs(t, err, provider.ErrValidation)
}

func TestSetAccessToken(t *testing.T) {
	tp := newTestTokenPay(t, &fakeTransport{})

	tp.SetAccessToken("T")
	token, ok := tp.Token()
	require.True(t, ok)
	assert.Equal(t, "Bearer T", token.Header())

	tp.SetAccessToken("")
	assert.False(t, tp.IsAuthenticated())
}

func TestProtectedCalls_RequireAuthentication(t *testing.T) {
	ctx := context.Background()
	calls := map[string]func(tp *TokenPay) error{
		"inquiry": func(tp *TokenPay) error {
			_, err := tp.Inquiry(ctx, "REQ1", nil)
			return err
		},
		"payment": func(tp *TokenPay) error {
			_, err := tp.Payment(ctx, validTransaction())
			return err
		},
		"status": func(tp *TokenPay) error {
			_, err := tp.StatusCheck(ctx, validTransaction())
			return err
		},
	}

	for name, fn := range calls {
		t.Run(name, func(t *testing.T) {
			transport := &fakeTransport{}
			tp := newTestTokenPay(t, transport)

			err := fn(tp)
			require.ErrorIs(t, err, provider.ErrAuth)
			assert.Contains(t, err.Error(), "not authenticated")
			assert.Empty(t, transport.calls)
		})
	}
}

func TestInquiry(t *testing.T) {
	transport := &fakeTransport{bodies: []string{`{"request_id":"REQ 1","amount":100,"status":"PENDING"}`}}
	tp := newTestTokenPay(t, transport)
	tp.SetAccessToken("T")

	data, err := tp.Inquiry(context.Background(), "REQ 1", map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", data["status"])

	c := transport.calls[0]
	assert.Equal(t, http.MethodGet, c.method)
	assert.Equal(t, "https://uat.esewa.com.np/inquiry/REQ%201?a=1&b=2", c.url)
	assert.Equal(t, "Bearer T", c.headers["Authorization"])
	assert.Equal(t, "application/json", c.headers["Content-Type"])
}

func TestInquiry_EmptyRequestID(t *testing.T) {
	transport := &fakeTransport{}
	tp := newTestTokenPay(t, transport)
	tp.SetAccessToken("T")

	_, err := tp.Inquiry(context.Background(), "  ", nil)
	require.ErrorIs(t, err, provider.ErrValidation)
	assert.Empty(t, transport.calls)
}

func TestPaymentAndStatus(t *testing.T) {
	tests := []struct {
		name string
		call func(tp *TokenPay, ctx context.Context, data map[string]any) (map[string]any, error)
		url  string
	}{
		{"payment", (*TokenPay).Payment, "https://uat.esewa.com.np/payment"},
		{"status", (*TokenPay).StatusCheck, "https://uat.esewa.com.np/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{bodies: []string{`{"code":0,"status":"SUCCESS"}`}}
			tp := newTestTokenPay(t, transport)
			tp.SetAccessToken("T")

			data, err := tt.call(tp, context.Background(), validTransaction())
			require.NoError(t, err)
			assert.Equal(t, "SUCCESS", data["status"])

			require.Len(t, transport.calls, 1)
			c := transport.calls[0]
			assert.Equal(t, http.MethodPost, c.method)
			assert.Equal(t, tt.url, c.url)
			assert.Equal(t, "REQ1", c.data["request_id"])
			assert.Equal(t, "Bearer T", c.headers["Authorization"])
			assert.Equal(t, "application/json", c.headers["Content-Type"])
		})
	}
}

func TestPayment_ValidationBeforeIO(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing request id", func(m map[string]any) { delete(m, "request_id") }},
		{"zero amount", func(m map[string]any) { m["amount"] = 0 }},
		{"nan amount", func(m map[string]any) { m["amount"] = "NaN" }},
		{"inf amount", func(m map[string]any) { m["amount"] = "Inf" }},
		{"infinity amount", func(m map[string]any) { m["amount"] = "+Infinity" }},
		{"missing transaction code", func(m map[string]any) { delete(m, "transaction_code") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{}
			tp := newTestTokenPay(t, transport)
			tp.SetAccessToken("T")

			data := validTransaction()
			tt.mutate(data)

			_, err := tp.Payment(context.Background(), data)
			require.ErrorIs(t, err, provider.ErrValidation)
			assert.Empty(t, transport.calls)
		})
	}
}

func TestPayment_APIError(t *testing.T) {
	tp := newTestTokenPay(t, &fakeTransport{bodies: []string{`{"code":5,"message":"Insufficient balance"}`}})
	tp.SetAccessToken("T")

	_, err := tp.Payment(context.Background(), validTransaction())
	require.ErrorIs(t, err, provider.ErrAPI)
	assert.EqualError(t, err, "esewa: API error: Insufficient balance")
}

func TestVerifySignature_AlwaysTrue(t *testing.T) {
	tp := newTestTokenPay(t, &fakeTransport{})
	assert.True(t, tp.VerifySignature(nil, ""))
	assert.True(t, tp.VerifySignature(map[string]any{"a": 1}, "anything"))
}

func TestConcurrentTokenAccess(t *testing.T) {
	transport := &fakeTransport{}
	tp := newTestTokenPay(t, transport)
	tp.SetAccessToken("T")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tp.SetAccessToken("T")
		}()
		go func() {
			defer wg.Done()
			_, _ = tp.Inquiry(context.Background(), "REQ1", nil)
		}()
	}
	wg.Wait()

	assert.Len(t, transport.calls, 20)
}

// End to end over the default resty transport
func TestAuthenticateThenInquiry_OverHTTP(t *testing.T) {
	var inquiryAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/access-token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "u", r.PostForm.Get("username"))
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("p")), r.PostForm.Get("password"))
		_, _ = w.Write([]byte(`{"access_token":"T","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/inquiry/REQ1", func(w http.ResponseWriter, r *http.Request) {
		inquiryAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"request_id":"REQ1","status":"PENDING"}`))
	})
	mux.HandleFunc("/payment", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "TXN1", body["transaction_code"])
		_, _ = w.Write([]byte(`{"code":0,"status":"SUCCESS"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tp := newTestTokenPay(t, &baseURLTransport{base: server.URL, next: provider.NewHTTPClient(nil)})

	_, err := tp.Authenticate(context.Background(), "u", "p")
	require.NoError(t, err)

	_, err = tp.Inquiry(context.Background(), "REQ1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer T", inquiryAuth)

	data, err := tp.Payment(context.Background(), validTransaction())
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", data["status"])
}

// baseURLTransport redirects the fixed eSewa host to a test server
type baseURLTransport struct {
	base string
	next provider.Transport
}

func (b *baseURLTransport) rewrite(url string) string {
	const host = "https://uat.esewa.com.np"
	return b.base + url[len(host):]
}

func (b *baseURLTransport) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return b.next.Get(ctx, b.rewrite(url), headers)
}

func (b *baseURLTransport) Post(ctx context.Context, url string, data map[string]any, headers map[string]string) ([]byte, error) {
	return b.next.Post(ctx, b.rewrite(url), data, headers)
}
