package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mstgnz/goesewa/infra/config"
	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/provider"
	"github.com/mstgnz/goesewa/provider/epay"
	"github.com/mstgnz/goesewa/provider/tokenpay"
)

// ErrUnknownMerchant is returned when no configuration exists for a merchant
var ErrUnknownMerchant = errors.New("merchant is not configured")

// ConfigSource supplies the stored options of a merchant's flow
type ConfigSource interface {
	GetMerchantConfig(merchant string, flow provider.Flow) (map[string]string, error)
}

// Registry hands out one flow instance per merchant and flow. Instances are
// built lazily from the ConfigSource and kept until Invalidate. A TokenPay
// instance holds the merchant's session, so dropping it signs the merchant out.
type Registry struct {
	source          ConfigSource
	defaultMerchant string
	transport       provider.Transport
	recorder        provider.ExchangeRecorder
	log             *logger.SystemLogger

	mu        sync.Mutex
	epays     map[string]*epay.Epay
	tokenPays map[string]*tokenpay.TokenPay
}

// Option customizes a Registry
type Option func(*Registry)

// WithDefaultMerchant is used when a request names no merchant
func WithDefaultMerchant(merchant string) Option {
	return func(r *Registry) {
		r.defaultMerchant = normalize(merchant)
	}
}

// WithTransport is passed to every flow the registry builds
func WithTransport(t provider.Transport) Option {
	return func(r *Registry) {
		r.transport = t
	}
}

// WithRecorder is passed to every flow the registry builds
func WithRecorder(rec provider.ExchangeRecorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// WithLogger is passed to every flow the registry builds
func WithLogger(l *logger.SystemLogger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// NewRegistry creates an empty registry over source
func NewRegistry(source ConfigSource, opts ...Option) *Registry {
	r := &Registry{
		source:    source,
		epays:     make(map[string]*epay.Epay),
		tokenPays: make(map[string]*tokenpay.TokenPay),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultMerchant returns the merchant used when none is named
func (r *Registry) DefaultMerchant() string {
	return r.defaultMerchant
}

func normalize(merchant string) string {
	return strings.ToUpper(strings.TrimSpace(merchant))
}

func (r *Registry) resolve(merchant string) (string, error) {
	if m := normalize(merchant); m != "" {
		return m, nil
	}
	if r.defaultMerchant == "" {
		return "", provider.NewValidationError("merchant", "merchant is required")
	}
	return r.defaultMerchant, nil
}

func (r *Registry) options(merchant string, flow provider.Flow) (provider.Options, error) {
	raw, err := r.source.GetMerchantConfig(merchant, flow)
	if errors.Is(err, config.ErrConfigNotFound) {
		return provider.Options{}, fmt.Errorf("%w: %s has no %s configuration", ErrUnknownMerchant, merchant, flow)
	}
	if err != nil {
		return provider.Options{}, err
	}
	return provider.OptionsFromMap(raw), nil
}

// Epay returns the ePay flow of merchant, building it on first use
func (r *Registry) Epay(merchant string) (*epay.Epay, error) {
	key, err := r.resolve(merchant)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.epays[key]; ok {
		return e, nil
	}

	opts, err := r.options(key, provider.FlowEpay)
	if err != nil {
		return nil, err
	}
	e, err := epay.New(opts,
		epay.WithTransport(r.transport),
		epay.WithRecorder(r.recorder),
		epay.WithLogger(r.log),
	)
	if err != nil {
		return nil, err
	}
	r.epays[key] = e
	return e, nil
}

// TokenPay returns the TokenPay flow of merchant, building it on first use
func (r *Registry) TokenPay(merchant string) (*tokenpay.TokenPay, error) {
	key, err := r.resolve(merchant)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tp, ok := r.tokenPays[key]; ok {
		return tp, nil
	}

	opts, err := r.options(key, provider.FlowTokenPay)
	if err != nil {
		return nil, err
	}
	tp, err := tokenpay.New(opts,
		tokenpay.WithTransport(r.transport),
		tokenpay.WithRecorder(r.recorder),
		tokenpay.WithLogger(r.log),
	)
	if err != nil {
		return nil, err
	}
	r.tokenPays[key] = tp
	return tp, nil
}

// Invalidate drops the cached instance of merchant's flow so the next call
// rebuilds it from fresh configuration
func (r *Registry) Invalidate(merchant string, flow provider.Flow) {
	key := normalize(merchant)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch flow {
	case provider.FlowEpay:
		delete(r.epays, key)
	case provider.FlowTokenPay:
		delete(r.tokenPays, key)
	}
}

// Active lists the merchants with a built instance, per flow
func (r *Registry) Active() map[provider.Flow][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := map[provider.Flow][]string{
		provider.FlowEpay:     make([]string, 0, len(r.epays)),
		provider.FlowTokenPay: make([]string, 0, len(r.tokenPays)),
	}
	for m := range r.epays {
		active[provider.FlowEpay] = append(active[provider.FlowEpay], m)
	}
	for m := range r.tokenPays {
		active[provider.FlowTokenPay] = append(active[provider.FlowTokenPay], m)
	}
	sort.Strings(active[provider.FlowEpay])
	sort.Strings(active[provider.FlowTokenPay])
	return active
}
