package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aurelius/pulse/internal/auth"
)

// minAuthDuration is the minimum time to spend on a failed auth check to
// prevent timing attacks.
const minAuthDuration = 100 * time.Millisecond

// ServiceAuth returns a middleware that authenticates callers against a
// single argon2id-hashed service token. An empty hash disables auth
// entirely, which is only acceptable in development.
func ServiceAuth(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokenHash == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			token := extractBearerToken(r)
			if token == "" {
				logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				padAuthFailure(start)
				writeAuthError(w)
				return
			}

			match, err := auth.VerifyToken(token, tokenHash)
			if err != nil {
				logger.Error("token hash verification error",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				padAuthFailure(start)
				writeAuthError(w)
				return
			}
			if !match {
				logger.Warn("authentication failed",
					slog.String("reason", "invalid_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				padAuthFailure(start)
				writeAuthError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the service token from the request.
// Supports both "Authorization: Bearer <token>" and "X-Service-Token" headers.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-Service-Token")
}

// padAuthFailure ensures failed checks take a consistent minimum time.
func padAuthFailure(start time.Time) {
	if elapsed := time.Since(start); elapsed < minAuthDuration {
		time.Sleep(minAuthDuration - elapsed)
	}
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing service token"}}`))
}
