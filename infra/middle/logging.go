package middle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/goesewa/infra/logger"
)

type ctxKey string

const (
	requestIDKey    ctxKey = "request_id"
	RequestIDHeader        = "X-Request-ID"
)

// GetRequestID returns the id assigned by RequestIDMiddleware
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestIDMiddleware tags every request with an id. A caller supplied
// X-Request-ID is kept when it is a valid UUID.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusRecorder captures the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// RequestLoggingMiddleware writes one structured line per request. Request
// and response bodies are never logged; they carry credentials and signatures.
func RequestLoggingMiddleware(l *logger.SystemLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			started := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			sys := l
			if sys == nil {
				sys = logger.GetGlobalLogger()
			}
			log := sys.WithContext(logger.LogContext{
				Flow:      FlowFromPath(r.URL.Path),
				RequestID: GetRequestID(r.Context()),
				Fields: map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      rw.statusCode,
					"duration_ms": time.Since(started).Milliseconds(),
					"client_ip":   GetClientIP(r),
				},
			})

			message := fmt.Sprintf("%s %s %d", r.Method, r.URL.Path, rw.statusCode)
			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				log.Error(message, nil)
			case rw.statusCode >= http.StatusBadRequest:
				log.Warn(message)
			default:
				log.Info(message)
			}
		})
	}
}

// FlowFromPath returns "epay" or "tokenpay" for API paths, "" otherwise
func FlowFromPath(path string) string {
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		switch segment {
		case "epay", "tokenpay":
			return segment
		}
	}
	return ""
}
