package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/skillcoin/learn-engine/internal/auth"
)

// authenticate verifies the bearer session token from the Authorization
// header and attaches the session to the request context
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "provide Authorization header with Bearer token")
			return
		}

		session, err := s.auth.SessionByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidSession) {
				respondError(w, http.StatusUnauthorized, "invalid_session", "session is invalid or expired")
				return
			}
			slog.Error("failed to look up session", "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "authentication error")
			return
		}

		ctx := ContextWithSession(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the session token from request headers
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}
	return ""
}
