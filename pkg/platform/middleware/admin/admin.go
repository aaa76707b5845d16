// Package admin guards the settings API. Two credentials are accepted: the
// shared X-Admin-Token header (compared in constant time, or verified against
// a bcrypt hash when one is configured) and a Bearer JWT issued by
// internal/jwttoken.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"storegate/internal/secrets"
	"storegate/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the admin subject.
type TokenValidator interface {
	ValidateToken(token string) (subject string, err error)
}

// Config holds the accepted credentials. Exactly one of Token or TokenHash is
// normally set; Validator is optional.
type Config struct {
	Token     string
	TokenHash string
	Validator TokenValidator
}

func RequireAdmin(cfg Config, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token := r.Header.Get("X-Admin-Token"); token != "" {
				if cfg.TokenHash != "" {
					if err := secrets.Verify(token, cfg.TokenHash); err == nil {
						next.ServeHTTP(w, r)
						return
					}
				} else if cfg.Token != "" &&
					subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.Validator != nil {
				const bearerPrefix = "Bearer "
				if raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok {
					subject, err := cfg.Validator.ValidateToken(raw)
					if err == nil {
						next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, subject)))
						return
					}
					logger.WarnContext(ctx, "invalid bearer token",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
			}

			logger.WarnContext(ctx, "admin credentials missing or invalid",
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin credentials required"}`))
		})
	}
}
