package handler

import (
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/infra/validate"
	"github.com/mstgnz/goesewa/provider"
	"github.com/mstgnz/goesewa/provider/epay"
	"github.com/mstgnz/goesewa/provider/tokenpay"
)

// FlowRegistry resolves the flow instances of a merchant
type FlowRegistry interface {
	Epay(merchant string) (*epay.Epay, error)
	TokenPay(merchant string) (*tokenpay.TokenPay, error)
}

// EpayHandler serves the redirect flow
type EpayHandler struct {
	flows     FlowRegistry
	validator *validator.Validate
	newUUID   func() string
}

// NewEpayHandler creates a new ePay handler
func NewEpayHandler(flows FlowRegistry, v *validator.Validate) *EpayHandler {
	return &EpayHandler{
		flows:     flows,
		validator: v,
		newUUID:   uuid.NewString,
	}
}

type createPaymentRequest struct {
	Amount          float64 `json:"amount" validate:"gt=0"`
	TaxAmount       float64 `json:"tax_amount" validate:"gte=0"`
	ServiceCharge   float64 `json:"product_service_charge" validate:"gte=0"`
	DeliveryCharge  float64 `json:"product_delivery_charge" validate:"gte=0"`
	TransactionUUID string  `json:"transaction_uuid" validate:"omitempty,max=64,txnuuid"`
}

// PaymentForm is what the merchant page needs to post the browser to eSewa
type PaymentForm struct {
	FormActionURL string            `json:"form_action_url"`
	Fields        map[string]string `json:"fields"`
}

// CreatePayment signs a new payment form
func (h *EpayHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := response.ReadJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validate.Struct(h.validator, &req); err != nil {
		writeError(w, r, "Invalid payment request", err)
		return
	}
	if req.TransactionUUID == "" {
		req.TransactionUUID = h.newUUID()
	}

	flow, err := h.flows.Epay(merchantFrom(r))
	if err != nil {
		writeError(w, r, "ePay is not available", err)
		return
	}

	payment, err := flow.CreatePayment(epay.PaymentRequest{
		Amount:          req.Amount,
		TaxAmount:       req.TaxAmount,
		ServiceCharge:   req.ServiceCharge,
		DeliveryCharge:  req.DeliveryCharge,
		TransactionUUID: req.TransactionUUID,
	})
	if err != nil {
		writeError(w, r, "Failed to create payment", err)
		return
	}

	response.Success(w, http.StatusCreated, "Payment created", PaymentForm{
		FormActionURL: flow.FormActionURL(),
		Fields:        payment.Fields(),
	})
}

// VerifyPayment checks the signed envelope eSewa appends to the success
// URL. The envelope is read from the data query parameter, or from the
// body of a POST. Without a merchant header the envelope's product code
// picks the merchant.
func (h *EpayHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	encoded := r.URL.Query().Get("data")
	if encoded == "" && r.Method == http.MethodPost {
		var err error
		if encoded, err = envelopeFromBody(w, r); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if encoded == "" {
		response.Error(w, http.StatusBadRequest, "data parameter is required", nil)
		return
	}

	merchant := merchantFrom(r)
	if merchant == "" {
		if decoded, err := provider.DecodeEnvelope(encoded); err == nil {
			merchant, _ = provider.FieldValue(decoded[provider.KeyProductCode])
		}
	}

	flow, err := h.flows.Epay(merchant)
	if err != nil {
		writeError(w, r, "ePay is not available", err)
		return
	}

	data, err := flow.VerifyPayment(encoded)
	if err != nil {
		writeError(w, r, "Payment verification failed", err)
		return
	}
	response.Success(w, http.StatusOK, "Payment verified", data)
}

func envelopeFromBody(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Data string `json:"data"`
		}
		if err := response.ReadJSON(w, r, &body); err != nil {
			return "", err
		}
		return body.Data, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue("data"), nil
}

type statusQuery struct {
	TransactionUUID string  `json:"transaction_uuid" validate:"required,max=64,txnuuid"`
	TotalAmount     float64 `json:"total_amount" validate:"gt=0"`
}

// PaymentStatus is a status answer with its settlement flag
type PaymentStatus struct {
	*epay.StatusResponse
	Complete bool `json:"complete"`
}

// CheckStatus asks eSewa for the state of a transaction
func (h *EpayHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := statusQuery{TransactionUUID: q.Get("transaction_uuid")}

	if raw := q.Get("total_amount"); raw != "" {
		total, err := provider.AmountValue("total_amount", raw)
		if err != nil {
			writeError(w, r, "Invalid status request", err)
			return
		}
		query.TotalAmount = total
	}
	if err := validate.Struct(h.validator, &query); err != nil {
		writeError(w, r, "Invalid status request", err)
		return
	}

	flow, err := h.flows.Epay(merchantFrom(r))
	if err != nil {
		writeError(w, r, "ePay is not available", err)
		return
	}

	status, err := flow.CheckStatus(r.Context(), query.TransactionUUID, query.TotalAmount)
	if err != nil {
		writeError(w, r, "Status check failed", err)
		return
	}
	response.Success(w, http.StatusOK, "Status retrieved", PaymentStatus{
		StatusResponse: status,
		Complete:       status.IsComplete(),
	})
}
