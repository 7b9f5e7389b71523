package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/observability"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	maxRequestIDLen = 128
)

// Storefront surfaces, used as metric and log labels.
const (
	surfaceSearch   = "search"
	surfaceSuggest  = "suggest"
	surfaceTrending = "trending"
	surfaceOps      = "ops"
	surfaceOther    = "other"
)

// surfaceOf maps a request path to the storefront surface it serves.
func surfaceOf(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/search"):
		return surfaceSearch
	case strings.HasPrefix(path, "/api/v1/suggest"):
		return surfaceSuggest
	case strings.HasPrefix(path, "/api/v1/trending"):
		return surfaceTrending
	case path == "/healthz" || path == "/readyz" || path == "/metrics":
		return surfaceOps
	default:
		return surfaceOther
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code})
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// validRequestID accepts caller ids that are safe to echo into logs and the
// search event log: bounded length, visible ASCII only.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// RequestIDMiddleware tags each request with an id carried into search
// events. A storefront-supplied X-Request-ID is kept when it is well formed.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware records one access log line and one latency sample per
// request, labelled by storefront surface. Health checks and scrapes log at debug.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			surface := surfaceOf(r.URL.Path)
			observability.APIRequestDuration.
				WithLabelValues(surface, statusClass(wrapped.statusCode)).
				Observe(elapsed.Seconds())

			fields := []zap.Field{
				zap.String("surface", surface),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", elapsed),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			}
			if q := r.URL.Query().Get("q"); q != "" && (surface == surfaceSearch || surface == surfaceSuggest) {
				fields = append(fields, zap.Int("query_len", len(q)))
			}

			if surface == surfaceOps {
				logger.Debug("request completed", fields...)
				return
			}
			logger.Info("request completed", fields...)
		})
	}
}

func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					surface := surfaceOf(r.URL.Path)
					observability.APIRejectionsTotal.WithLabelValues(surface, "panic").Inc()
					logger.Error("panic recovered",
						zap.String("surface", surface),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("request_id", RequestIDFromContext(r.Context())),
					)
					writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter bounds the number of in-flight storefront requests. Excess
// requests are shed immediately rather than queued.
type RateLimiter struct {
	tokens chan struct{}
	logger *zap.Logger
}

func NewRateLimiter(maxConcurrent int, logger *zap.Logger) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	tokens := make(chan struct{}, maxConcurrent)
	for i := 0; i < maxConcurrent; i++ {
		tokens <- struct{}{}
	}
	return &RateLimiter{tokens: tokens, logger: logger}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-rl.tokens:
			defer func() { rl.tokens <- struct{}{} }()
			next.ServeHTTP(w, r)
		default:
			surface := surfaceOf(r.URL.Path)
			observability.APIRejectionsTotal.WithLabelValues(surface, "overloaded").Inc()
			rl.logger.Warn("concurrency limit reached",
				zap.String("surface", surface),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			)
			w.Header().Set("Retry-After", "1")
			writeErrorResponse(w, http.StatusTooManyRequests, "overloaded", "too many concurrent requests")
		}
	})
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
