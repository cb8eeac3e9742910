package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/tokeniq/assetmarket/internal/auth"
	"github.com/tokeniq/assetmarket/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// requireAuth returns middleware that parses the Authorization bearer
// token into a principal and rejects unauthenticated requests.
func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			p, err := auth.Parse(secret, token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// principalFrom extracts the authenticated principal stored by
// requireAuth. The zero principal is returned on unauthenticated routes.
func principalFrom(r *http.Request) domain.Principal {
	p, _ := r.Context().Value(principalKey).(domain.Principal)
	return p
}
