package epay

import (
	"context"
	"net/http"
	"time"

	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/provider"
	"github.com/shopspring/decimal"
)

const (
	// SignedFieldNames is the protocol-fixed signing order for new payments
	SignedFieldNames = "total_amount,transaction_uuid,product_code"

	endpointForm   = "/api/epay/main/v2/form"
	endpointStatus = "/api/epay/transaction/status/"
)

// Epay is the browser-redirect payment flow. It holds no state beyond its
// configuration and is safe for concurrent use.
type Epay struct {
	settings  provider.Settings
	transport provider.Transport
	recorder  provider.ExchangeRecorder
	log       *logger.ContextLogger
}

var _ provider.PaymentFlow = (*Epay)(nil)

// Option customizes an Epay instance
type Option func(*Epay)

// WithTransport replaces the default resty transport
func WithTransport(t provider.Transport) Option {
	return func(e *Epay) {
		if t != nil {
			e.transport = t
		}
	}
}

// WithRecorder records every status exchange
func WithRecorder(r provider.ExchangeRecorder) Option {
	return func(e *Epay) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithLogger replaces the global system logger
func WithLogger(l *logger.SystemLogger) Option {
	return func(e *Epay) {
		if l != nil {
			e.log = l.WithContext(e.logContext())
		}
	}
}

// New validates opts and returns a configured ePay flow
func New(opts provider.Options, options ...Option) (*Epay, error) {
	settings, err := provider.Resolve(opts, provider.FlowEpay)
	if err != nil {
		return nil, err
	}

	e := &Epay{
		settings:  settings,
		transport: provider.NewHTTPClient(nil),
		recorder:  provider.NopRecorder{},
	}
	e.log = logger.WithContext(e.logContext())

	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

func (e *Epay) logContext() logger.LogContext {
	return logger.LogContext{
		Merchant: e.settings.ProductCode,
		Flow:     string(provider.FlowEpay),
	}
}

// Environment returns the resolved environment
func (e *Epay) Environment() provider.Environment {
	return e.settings.Environment
}

// ProductCode returns the merchant product code
func (e *Epay) ProductCode() string {
	return e.settings.ProductCode
}

// FormActionURL is where the browser posts the fields of a Payment
func (e *Epay) FormActionURL() string {
	return provider.JoinURL(e.settings.BaseURL(provider.URLPayment), endpointForm)
}

// CreatePayment validates req, computes the total and signs the payload.
// total_amount is the exact decimal sum of amount and the three charges.
func (e *Epay) CreatePayment(req PaymentRequest) (*Payment, error) {
	if err := provider.PositiveAmount("amount", req.Amount); err != nil {
		return nil, err
	}
	if err := provider.TransactionUUID(req.TransactionUUID); err != nil {
		return nil, err
	}
	charges := []struct {
		field string
		value float64
	}{
		{"tax_amount", req.TaxAmount},
		{"product_service_charge", req.ServiceCharge},
		{"product_delivery_charge", req.DeliveryCharge},
	}
	for _, c := range charges {
		if err := provider.NonNegativeAmount(c.field, c.value); err != nil {
			return nil, err
		}
	}

	amount := decimal.NewFromFloat(req.Amount)
	tax := decimal.NewFromFloat(req.TaxAmount)
	service := decimal.NewFromFloat(req.ServiceCharge)
	delivery := decimal.NewFromFloat(req.DeliveryCharge)
	total := amount.Add(tax).Add(service).Add(delivery)

	canonical := provider.CanonicalString([]provider.Field{
		{Name: "total_amount", Value: provider.FormatDecimal(total)},
		{Name: "transaction_uuid", Value: req.TransactionUUID},
		{Name: "product_code", Value: e.settings.ProductCode},
	})

	payment := &Payment{
		Amount:                amount,
		TaxAmount:             tax,
		TotalAmount:           total,
		TransactionUUID:       req.TransactionUUID,
		ProductCode:           e.settings.ProductCode,
		ProductServiceCharge:  service,
		ProductDeliveryCharge: delivery,
		SuccessURL:            e.settings.SuccessURL,
		FailureURL:            e.settings.FailureURL,
		SignedFieldNames:      SignedFieldNames,
		Signature:             provider.Sign(canonical, e.settings.SecretKey),
	}

	e.log.SetRequestID(req.TransactionUUID).
		AddField("total_amount", provider.FormatDecimal(total)).
		Debug("payment payload signed")

	return payment, nil
}

// VerifyPayment decodes the base64 callback document, checks its signature
// against its own signed_field_names and returns the decoded fields.
func (e *Epay) VerifyPayment(encoded string) (map[string]any, error) {
	data, err := provider.DecodeEnvelope(encoded)
	if err != nil {
		return nil, err
	}

	signature, ok := provider.FieldValue(data["signature"])
	if !ok {
		return nil, provider.NewSignatureError("signature", "invalid response: missing signature")
	}
	names, ok := provider.FieldValue(data["signed_field_names"])
	if !ok {
		return nil, provider.NewSignatureError("signed_field_names", "invalid response: missing signed field names")
	}

	valid, err := provider.Verify(data, names, signature, e.settings.SecretKey)
	if err != nil {
		return nil, err
	}
	if !valid {
		e.log.AddField("signed_field_names", names).Warn("callback signature mismatch")
		return nil, provider.NewSignatureError("signature", "invalid signature")
	}

	if uuid, ok := provider.FieldValue(data["transaction_uuid"]); ok {
		e.log.SetRequestID(uuid).Info("callback verified")
	}
	return data, nil
}

// VerifySignature is the non-failing form of the callback check. It
// returns false when signed_field_names or any listed field is missing.
func (e *Epay) VerifySignature(data map[string]any, signature string) bool {
	names, ok := provider.FieldValue(data["signed_field_names"])
	if !ok {
		return false
	}
	valid, err := provider.Verify(data, names, signature, e.settings.SecretKey)
	return err == nil && valid
}

// CheckStatus queries the gateway for the state of a transaction. A non-zero
// response code is returned as an API error and is not retried.
func (e *Epay) CheckStatus(ctx context.Context, transactionUUID string, totalAmount float64) (*StatusResponse, error) {
	if err := provider.TransactionUUID(transactionUUID); err != nil {
		return nil, err
	}
	if err := provider.PositiveAmount("total_amount", totalAmount); err != nil {
		return nil, err
	}

	total := provider.FormatAmount(totalAmount)
	url := provider.BuildURL(e.settings.BaseURL(provider.URLPayment), endpointStatus, [][2]string{
		{"product_code", e.settings.ProductCode},
		{"total_amount", total},
		{"transaction_uuid", transactionUUID},
	})
	request := map[string]any{
		"product_code":     e.settings.ProductCode,
		"total_amount":     total,
		"transaction_uuid": transactionUUID,
	}

	started := time.Now()
	data, err := e.get(ctx, url)
	e.record(ctx, "check_status", url, request, data, started, err)
	if err != nil {
		e.log.SetRequestID(transactionUUID).Error("status check failed", err)
		return nil, err
	}

	status := parseStatus(data)
	e.log.SetRequestID(transactionUUID).AddField("status", status.Status).Info("status checked")
	return status, nil
}

func (e *Epay) get(ctx context.Context, url string) (map[string]any, error) {
	body, err := e.transport.Get(ctx, url, map[string]string{"Accept": "application/json"})
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

func (e *Epay) record(ctx context.Context, operation, url string, request, response map[string]any, started time.Time, err error) {
	ex := provider.NewExchange(provider.FlowEpay, operation, http.MethodGet, url, request, response, started, err)
	if recErr := e.recorder.RecordExchange(ctx, ex); recErr != nil {
		e.log.Warn("failed to record exchange: " + recErr.Error())
	}
}
