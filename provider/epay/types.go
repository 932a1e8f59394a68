package epay

import (
	"github.com/mstgnz/goesewa/provider"
	"github.com/shopspring/decimal"
)

// Transaction statuses reported by the status endpoint
const (
	StatusComplete      = "COMPLETE"
	StatusPending       = "PENDING"
	StatusFullRefund    = "FULL_REFUND"
	StatusPartialRefund = "PARTIAL_REFUND"
	StatusAmbiguous     = "AMBIGUOUS"
	StatusNotFound      = "NOT_FOUND"
	StatusCanceled      = "CANCELED"
)

// PaymentRequest is the merchant's input to CreatePayment.
// Charges left at zero are sent as zero.
type PaymentRequest struct {
	Amount          float64 `json:"amount"`
	TaxAmount       float64 `json:"tax_amount,omitempty"`
	ServiceCharge   float64 `json:"product_service_charge,omitempty"`
	DeliveryCharge  float64 `json:"product_delivery_charge,omitempty"`
	TransactionUUID string  `json:"transaction_uuid"`
}

// Payment is the signed form payload submitted to the ePay form endpoint.
// Amounts marshal as JSON strings carrying their canonical text.
type Payment struct {
	Amount                decimal.Decimal `json:"amount"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TransactionUUID       string          `json:"transaction_uuid"`
	ProductCode           string          `json:"product_code"`
	ProductServiceCharge  decimal.Decimal `json:"product_service_charge"`
	ProductDeliveryCharge decimal.Decimal `json:"product_delivery_charge"`
	SuccessURL            string          `json:"success_url"`
	FailureURL            string          `json:"failure_url"`
	SignedFieldNames      string          `json:"signed_field_names"`
	Signature             string          `json:"signature"`
}

// Fields returns the wire fields for form submission
func (p *Payment) Fields() map[string]string {
	return map[string]string{
		"amount":                  provider.FormatDecimal(p.Amount),
		"tax_amount":              provider.FormatDecimal(p.TaxAmount),
		"total_amount":            provider.FormatDecimal(p.TotalAmount),
		"transaction_uuid":        p.TransactionUUID,
		"product_code":            p.ProductCode,
		"product_service_charge":  provider.FormatDecimal(p.ProductServiceCharge),
		"product_delivery_charge": provider.FormatDecimal(p.ProductDeliveryCharge),
		"success_url":             p.SuccessURL,
		"failure_url":             p.FailureURL,
		"signed_field_names":      p.SignedFieldNames,
		"signature":               p.Signature,
	}
}

// StatusResponse is the parsed answer of the transaction status endpoint
type StatusResponse struct {
	ProductCode     string          `json:"product_code"`
	TransactionUUID string          `json:"transaction_uuid"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	RefID           string          `json:"ref_id,omitempty"`
	Raw             map[string]any  `json:"-"`
}

// IsComplete reports whether the payment settled
func (s *StatusResponse) IsComplete() bool {
	return s.Status == StatusComplete
}

func parseStatus(data map[string]any) *StatusResponse {
	str := func(key string) string {
		v, _ := provider.FieldValue(data[key])
		return v
	}

	resp := &StatusResponse{
		ProductCode:     str("product_code"),
		TransactionUUID: str("transaction_uuid"),
		Status:          str("status"),
		RefID:           str("ref_id"),
		Raw:             data,
	}
	if total, err := decimal.NewFromString(str("total_amount")); err == nil {
		resp.TotalAmount = total
	}
	return resp
}
