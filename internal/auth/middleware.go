package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/logging"
)

// AccessTokenCookie is the cookie browsers send the access token in.
const AccessTokenCookie = "accessToken"

// CallerFromContext returns the authenticated user id, or "" for anonymous requests.
func CallerFromContext(ctx context.Context) string {
	return logging.ScopeFrom(ctx).CallerID
}

// Verifier validates access tokens.
type Verifier interface {
	Verify(accessToken string) (string, error)
}

// Authenticate resolves the caller from the bearer token or the access token cookie. When
// required is false anonymous requests pass through and only a present but invalid token is
// rejected.
func Authenticate(verifier Verifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := tokenFromRequest(r)
			if token == "" {
				if required {
					envelope.WriteError(ctx, w, apperr.Unauthenticated("authentication required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logging.FromContext(ctx).Warn("rejected access token", slog.Any("error", err))
				envelope.WriteError(ctx, w, apperr.Unauthenticated("invalid or expired access token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(logging.WithCaller(ctx, userID)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// RequireCaller rejects requests that reached it without an authenticated caller. It expects
// Authenticate to have run earlier in the chain.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFromContext(r.Context()) == "" {
			envelope.WriteError(r.Context(), w, apperr.Unauthenticated("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
