package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/rafaeljc/flagscope/internal/logger"
	"github.com/rafaeljc/flagscope/internal/observability"
)

// APIKeyHeader carries the operator key. "Authorization: Bearer <key>" is accepted too.
const APIKeyHeader = "X-API-Key"

// requestLogger stores a request-scoped logger in the context, logs the completed
// request and records the HTTP metrics under the matched route pattern.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := middleware.GetReqID(r.Context())
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx, log := logger.With(logger.WithContext(r.Context(), a.logger), slog.String("request_id", reqID))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.APIReqDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
		observability.APIReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		log.Log(ctx, level, "HTTP request completed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.String("remote_ip", r.RemoteAddr),
		)
	})
}

// authenticateAPIKey compares the SHA-256 of the presented key with the configured hash
// in constant time.
func (a *API) authenticateAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.opts.SkipAuth {
			next.ServeHTTP(w, r)
			return
		}

		key := presentedKey(r)
		if key == "" {
			writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "API key is required")
			return
		}

		sum := sha256.Sum256([]byte(key))
		got := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(a.opts.APIKeyHash))) != 1 {
			logger.FromContext(r.Context()).Warn("rejected invalid api key")
			writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "API key is invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: code, Message: message})
}
