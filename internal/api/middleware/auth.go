package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/auth"
)

const (
	TokenCookie     = "token"
	HeaderAuthToken = "X-Auth-Token"
)

type cookieAuthKey struct{}

// Auth validates the caller's token and stores the principal in the request
// context. Tokens are read from the Authorization header, the token cookie,
// then X-Auth-Token.
func Auth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := auth.WithPrincipal(r.Context(), claims.Principal())
			if fromCookie {
				ctx = context.WithValue(ctx, cookieAuthKey{}, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (token string, fromCookie bool) {
	// 1. Authorization header (API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), false
	}

	// 2. Cookie set at login (browser)
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	// 3. X-Auth-Token (localStorage fallback for AJAX)
	return strings.TrimSpace(r.Header.Get(HeaderAuthToken)), false
}

// CookieAuthenticated reports whether the principal came from the token cookie.
func CookieAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(cookieAuthKey{}).(bool)
	return v
}

func unauthorized(w http.ResponseWriter) {
	respond.JSON(w, http.StatusUnauthorized, dto.ErrorResponse{
		Error: "Unauthorized",
		Code:  "unauthenticated",
	})
}
