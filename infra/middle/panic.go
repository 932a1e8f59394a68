package middle

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/infra/response"
)

// PanicRecoveryMiddleware handles panics and converts them to HTTP 500 errors
func PanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return PanicRecoveryWithCustomHandler(func(w http.ResponseWriter, r *http.Request, recovered any) {
		requestID := GetRequestID(r.Context())
		if requestID == "" {
			requestID = "unknown"
		}

		logger.Error("Panic recovered", fmt.Errorf("%v", recovered), logger.LogContext{
			Flow:      FlowFromPath(r.URL.Path),
			RequestID: requestID,
			Fields: map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"stack":  string(debug.Stack()),
			},
		})

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		response.Error(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("an unexpected error occurred"))
	})
}

// PanicRecoveryWithCustomHandler allows custom panic handling.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func PanicRecoveryWithCustomHandler(handler func(http.ResponseWriter, *http.Request, any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}
					handler(w, r, recovered)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
