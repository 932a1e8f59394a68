package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/goesewa/infra/config"
	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/provider"
	"github.com/mstgnz/goesewa/service"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

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

func (f *fakeTransport) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func quietLogger() *logger.SystemLogger {
	return logger.NewSystemLogger(nil, logger.SystemLoggerConfig{MinLevel: logger.LevelFatal})
}

func testMerchants(t *testing.T) *config.MerchantConfig {
	t.Helper()
	mc := config.NewMerchantConfig(nil)
	require.NoError(t, mc.SetMerchantConfig("EPAYTEST", provider.FlowEpay, map[string]string{
		provider.KeyProductCode: "EPAYTEST",
		provider.KeySecretKey:   testSecret,
		provider.KeySuccessURL:  "https://merchant.example.com/success",
		provider.KeyFailureURL:  "https://merchant.example.com/failure",
	}))
	require.NoError(t, mc.SetMerchantConfig("EPAYTEST", provider.FlowTokenPay, map[string]string{
		provider.KeyProductCode:  "EPAYTEST",
		provider.KeySecretKey:    testSecret,
		provider.KeyClientSecret: "client-secret",
	}))
	return mc
}

func newTestRegistry(t *testing.T, transport provider.Transport) *service.Registry {
	t.Helper()
	return service.NewRegistry(testMerchants(t),
		service.WithDefaultMerchant("EPAYTEST"),
		service.WithTransport(transport),
		service.WithLogger(quietLogger()),
	)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// dataMap returns the data member of a decoded response as a map
func dataMap(t *testing.T, resp response.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

// withURLParams attaches chi route parameters to r
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
