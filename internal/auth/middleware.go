package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userRunKey contextKey = "user_run"

// Middleware verifies the HS256 bearer token issued by the auth
// endpoints (out of scope here) and puts the caller's run into the
// request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "failed to parse claims", http.StatusUnauthorized)
				return
			}
			run, _ := claims["run"].(string)
			if run == "" {
				// Fall back to the standard subject claim.
				run, _ = claims["sub"].(string)
			}

			ctx := context.WithValue(r.Context(), userRunKey, run)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserRun extracts the authenticated user's run from the context.
func UserRun(ctx context.Context) string {
	if run, ok := ctx.Value(userRunKey).(string); ok {
		return run
	}
	return ""
}
