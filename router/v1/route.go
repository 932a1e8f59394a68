package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/goesewa/handler"
	"github.com/mstgnz/goesewa/infra/middle"
)

// Handlers groups the handlers served under /v1. Logs and AuthLimiter are
// optional.
type Handlers struct {
	Epay        *handler.EpayHandler
	TokenPay    *handler.TokenPayHandler
	Config      *handler.ConfigHandler
	Logs        *handler.LogsHandler
	AuthLimiter *middle.RateLimiter
}

// Routes registers all API routes
func Routes(r chi.Router, h Handlers) {
	r.Route("/epay", func(r chi.Router) {
		r.Post("/payments", h.Epay.CreatePayment)
		r.Get("/verify", h.Epay.VerifyPayment)
		r.Post("/verify", h.Epay.VerifyPayment)
		r.Get("/status", h.Epay.CheckStatus)
	})

	r.Route("/tokenpay", func(r chi.Router) {
		auth := r
		if h.AuthLimiter != nil {
			auth = r.With(middle.RateLimitMiddleware(h.AuthLimiter))
		}
		auth.Post("/auth", h.TokenPay.Authenticate)
		auth.Post("/refresh", h.TokenPay.RefreshToken)

		r.Put("/token", h.TokenPay.SetAccessToken)
		r.Get("/inquiry/{requestID}", h.TokenPay.Inquiry)
		r.Post("/payment", h.TokenPay.Payment)
		r.Post("/status", h.TokenPay.StatusCheck)
	})

	r.Route("/config", func(r chi.Router) {
		r.Get("/stats", h.Config.GetStats)
		r.Get("/{flow}", h.Config.ListMerchants)
		r.Get("/{flow}/fields", h.Config.GetFields)
		r.Put("/{flow}", h.Config.SetConfig)
		r.Delete("/{flow}", h.Config.DeleteConfig)
	})

	if h.Logs != nil {
		r.Route("/logs", func(r chi.Router) {
			r.Get("/{flow}", h.Logs.ListLogs)
			r.Get("/{flow}/errors", h.Logs.GetErrorLogs)
			r.Get("/{flow}/{requestID}", h.Logs.GetTransactionLogs)
		})
	}
}
