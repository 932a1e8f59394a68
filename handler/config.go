package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/provider"
)

// MerchantStore keeps the per-merchant flow options
type MerchantStore interface {
	SetMerchantConfig(merchant string, flow provider.Flow, options map[string]string) error
	DeleteMerchantConfig(merchant string, flow provider.Flow) error
	Merchants(flow provider.Flow) []string
	GetStats() map[string]any
}

// Invalidator drops cached flow instances after their options change
type Invalidator interface {
	Invalidate(merchant string, flow provider.Flow)
}

// ConfigHandler handles merchant configuration requests
type ConfigHandler struct {
	store MerchantStore
	flows Invalidator
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(store MerchantStore, flows Invalidator) *ConfigHandler {
	return &ConfigHandler{store: store, flows: flows}
}

func flowParam(r *http.Request) (provider.Flow, error) {
	flow := provider.Flow(strings.ToLower(chi.URLParam(r, "flow")))
	switch flow {
	case provider.FlowEpay, provider.FlowTokenPay:
		return flow, nil
	}
	return "", provider.NewValidationError("flow", `flow must be either "epay" or "tokenpay"`)
}

// GetFields lists the configuration fields a flow accepts
func (h *ConfigHandler) GetFields(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		writeError(w, r, "Unknown flow", err)
		return
	}
	response.Success(w, http.StatusOK, "Configuration fields", map[string]any{
		"flow":   flow,
		"fields": provider.RequiredConfig(flow),
	})
}

// ListMerchants lists the merchants configured for a flow
func (h *ConfigHandler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		writeError(w, r, "Unknown flow", err)
		return
	}
	response.Success(w, http.StatusOK, "Configured merchants", map[string]any{
		"flow":      flow,
		"merchants": h.store.Merchants(flow),
	})
}

// SetConfig validates and stores the options of a merchant's flow. The
// merchant comes from the merchant header, else from product_code.
func (h *ConfigHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		writeError(w, r, "Unknown flow", err)
		return
	}

	var options map[string]string
	if err := response.ReadJSON(w, r, &options); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	merchant := merchantFrom(r)
	if merchant == "" {
		merchant = options[provider.KeyProductCode]
	}
	if err := h.store.SetMerchantConfig(merchant, flow, options); err != nil {
		if provider.KindOf(err) == provider.KindConfiguration {
			response.ErrorWithData(w, http.StatusBadRequest, "Invalid configuration", err, errorDetails(err))
			return
		}
		writeError(w, r, "Failed to save configuration", err)
		return
	}
	h.flows.Invalidate(merchant, flow)

	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	response.Success(w, http.StatusOK, "Configuration saved", map[string]any{
		"merchant": strings.ToUpper(strings.TrimSpace(merchant)),
		"flow":     flow,
		"fields":   keys,
	})
}

// DeleteConfig removes the options of a merchant's flow
func (h *ConfigHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		writeError(w, r, "Unknown flow", err)
		return
	}
	merchant := merchantFrom(r)
	if merchant == "" {
		response.Error(w, http.StatusBadRequest, MerchantHeader+" header is required", nil)
		return
	}

	if err := h.store.DeleteMerchantConfig(merchant, flow); err != nil {
		writeError(w, r, "Failed to delete configuration", err)
		return
	}
	h.flows.Invalidate(merchant, flow)
	response.Success(w, http.StatusOK, "Configuration deleted", nil)
}

// GetStats reports storage statistics
func (h *ConfigHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Configuration statistics", h.store.GetStats())
}
