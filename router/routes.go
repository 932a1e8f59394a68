package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mstgnz/goesewa/handler"
	"github.com/mstgnz/goesewa/infra/config"
	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/infra/middle"
	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/infra/validate"
	"github.com/mstgnz/goesewa/service"
	v1 "github.com/mstgnz/goesewa/router/v1"
)

// Dependencies is everything the HTTP layer needs. Storage and Logs may be nil.
type Dependencies struct {
	App       *config.AppConfig
	Registry  *service.Registry
	Merchants *config.MerchantConfig
	Storage   handler.StoragePinger
	Logs      handler.ExchangeSearcher
	Logger    *logger.SystemLogger
	Version   string
}

// New builds the root router. The returned stop func ends the rate limiter
// cleanup goroutines.
func New(deps Dependencies) (http.Handler, func()) {
	app := deps.App
	limiter := middle.NewRateLimiter(app.RateLimit, time.Minute)
	authLimiter := middle.NewRateLimiter(app.AuthRateLimit, time.Minute)
	stop := func() {
		limiter.Stop()
		authLimiter.Stop()
	}

	r := chi.NewRouter()

	if app.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middle.RequestIDMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.RequestLoggingMiddleware(deps.Logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With", middle.RequestIDHeader, handler.MerchantHeader},
		ExposedHeaders:   []string{"Content-Length", middle.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middle.RateLimitMiddleware(limiter))
	r.Use(middle.RequestValidationMiddleware())

	health := handler.NewHealthHandler(deps.Storage, deps.Merchants, deps.Logs != nil, deps.Version, app.Environment)
	r.Get("/health", health.CheckHealth)

	Routes(r, deps, authLimiter)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
	})

	return r, stop
}

// Routes mounts the authenticated API under /v1
func Routes(r chi.Router, deps Dependencies, authLimiter *middle.RateLimiter) {
	v := validate.Get()

	handlers := v1.Handlers{
		Epay:        handler.NewEpayHandler(deps.Registry, v),
		TokenPay:    handler.NewTokenPayHandler(deps.Registry, v),
		Config:      handler.NewConfigHandler(deps.Merchants, deps.Registry),
		AuthLimiter: authLimiter,
	}
	if deps.Logs != nil {
		handlers.Logs = handler.NewLogsHandler(deps.Logs)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.IPWhitelistMiddleware(deps.App.IPWhitelist))
		r.Use(middle.AuthMiddleware(deps.App.APIKey))
		v1.Routes(r, handlers)
	})
}
