package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mstgnz/goesewa/infra/config"
	"github.com/mstgnz/goesewa/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invalidation struct {
	merchant string
	flow     provider.Flow
}

type recordingInvalidator struct {
	calls []invalidation
}

func (r *recordingInvalidator) Invalidate(merchant string, flow provider.Flow) {
	r.calls = append(r.calls, invalidation{merchant, flow})
}

func newConfigHandler(t *testing.T) (*ConfigHandler, *config.MerchantConfig, *recordingInvalidator) {
	t.Helper()
	store := config.NewMerchantConfig(nil)
	inv := &recordingInvalidator{}
	return NewConfigHandler(store, inv), store, inv
}

func TestConfigHandler_GetFields(t *testing.T) {
	h, _, _ := newConfigHandler(t)

	tests := []struct {
		flow       string
		wantStatus int
		wantKeys   []string
	}{
		{"epay", http.StatusOK, []string{"environment", "product_code", "secret_key", "success_url", "failure_url"}},
		{"TOKENPAY", http.StatusOK, []string{"environment", "product_code", "secret_key", "client_secret"}},
		{"paypal", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.flow, func(t *testing.T) {
			req := withURLParams(httptest.NewRequest(http.MethodGet, "/v1/config/"+tt.flow+"/fields", nil), map[string]string{"flow": tt.flow})
			rr := httptest.NewRecorder()
			h.GetFields(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantKeys == nil {
				return
			}

			fields := dataMap(t, decodeResponse(t, rr))["fields"].([]any)
			keys := make([]string, 0, len(fields))
			for _, f := range fields {
				keys = append(keys, f.(map[string]any)["key"].(string))
			}
			assert.ElementsMatch(t, tt.wantKeys, keys)
		})
	}
}

func TestConfigHandler_SetConfig(t *testing.T) {
	h, store, inv := newConfigHandler(t)

	body := `{"product_code":"epaytest","secret_key":"8gBm/:&EnhH.1/q","client_secret":"client-secret"}`
	req := withURLParams(jsonRequest(http.MethodPut, "/v1/config/tokenpay", body), map[string]string{"flow": "tokenpay"})
	rr := httptest.NewRecorder()
	h.SetConfig(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, decodeResponse(t, rr))
	assert.Equal(t, "EPAYTEST", data["merchant"])
	assert.Equal(t, []any{"client_secret", "product_code", "secret_key"}, data["fields"])
	assert.NotContains(t, rr.Body.String(), "client-secret")

	got, err := store.GetMerchantConfig("EPAYTEST", provider.FlowTokenPay)
	require.NoError(t, err)
	assert.Equal(t, "client-secret", got[provider.KeyClientSecret])
	assert.Equal(t, []invalidation{{"epaytest", provider.FlowTokenPay}}, inv.calls)
}

func TestConfigHandler_SetConfig_MerchantHeader(t *testing.T) {
	h, store, _ := newConfigHandler(t)

	body := `{"product_code":"EPAYTEST","secret_key":"8gBm/:&EnhH.1/q","success_url":"https://m.example.com/ok","failure_url":"https://m.example.com/fail"}`
	req := withURLParams(jsonRequest(http.MethodPut, "/v1/config/epay", body), map[string]string{"flow": "epay"})
	req.Header.Set(MerchantHeader, "SHOP-1")
	rr := httptest.NewRecorder()
	h.SetConfig(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, []string{"SHOP-1"}, store.Merchants(provider.FlowEpay))
}

func TestConfigHandler_SetConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		flow      string
		body      string
		wantField string
	}{
		{"missing_secret", "tokenpay", `{"product_code":"EPAYTEST","client_secret":"x"}`, "secret_key"},
		{"bad_url", "epay", `{"product_code":"EPAYTEST","secret_key":"8gBm/:&EnhH.1/q","success_url":"not a url","failure_url":"https://m.example.com/fail"}`, "success_url"},
		{"bad_environment", "tokenpay", `{"environment":"staging","product_code":"EPAYTEST","secret_key":"8gBm/:&EnhH.1/q","client_secret":"x"}`, "environment"},
		{"empty", "epay", `{}`, "merchant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, inv := newConfigHandler(t)
			req := withURLParams(jsonRequest(http.MethodPut, "/v1/config/"+tt.flow, tt.body), map[string]string{"flow": tt.flow})
			rr := httptest.NewRecorder()
			h.SetConfig(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantField, dataMap(t, decodeResponse(t, rr))["field"])
			assert.Empty(t, inv.calls)
		})
	}
}

func TestConfigHandler_ListAndDelete(t *testing.T) {
	h, store, inv := newConfigHandler(t)
	require.NoError(t, store.SetMerchantConfig("EPAYTEST", provider.FlowTokenPay, map[string]string{
		provider.KeyProductCode:  "EPAYTEST",
		provider.KeySecretKey:    "8gBm/:&EnhH.1/q",
		provider.KeyClientSecret: "client-secret",
	}))

	params := map[string]string{"flow": "tokenpay"}

	rr := httptest.NewRecorder()
	h.ListMerchants(rr, withURLParams(httptest.NewRequest(http.MethodGet, "/v1/config/tokenpay", nil), params))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{"EPAYTEST"}, dataMap(t, decodeResponse(t, rr))["merchants"])

	rr = httptest.NewRecorder()
	h.DeleteConfig(rr, withURLParams(httptest.NewRequest(http.MethodDelete, "/v1/config/tokenpay", nil), params))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	del := withURLParams(httptest.NewRequest(http.MethodDelete, "/v1/config/tokenpay", nil), params)
	del.Header.Set(MerchantHeader, "EPAYTEST")
	rr = httptest.NewRecorder()
	h.DeleteConfig(rr, del)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, store.Merchants(provider.FlowTokenPay))
	assert.Equal(t, []invalidation{{"EPAYTEST", provider.FlowTokenPay}}, inv.calls)

	rr = httptest.NewRecorder()
	h.DeleteConfig(rr, del)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConfigHandler_GetStats(t *testing.T) {
	h, _, _ := newConfigHandler(t)

	rr := httptest.NewRecorder()
	h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/v1/config/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, decodeResponse(t, rr))
	assert.Equal(t, float64(0), data["memory_configs"])
	assert.Equal(t, "not_available", data["sqlite"])
}
