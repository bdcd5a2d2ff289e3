package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/filedrop/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// userIDKey is the context key for the authenticated user's ID.
const userIDKey contextKey = "userID"

// userEmailKey is the context key for the authenticated user's email.
const userEmailKey contextKey = "userEmail"

// UserID extracts the authenticated user's ID from the request context.
// Handlers pass it explicitly to services — nothing below the HTTP layer
// reads ambient session state.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// UserEmail extracts the authenticated user's email from the request context.
func UserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userEmailKey).(string)
	return email, ok && email != ""
}

// RequireAuth returns middleware that validates a Bearer JWT and injects
// user claims into the request context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || parts[0] != "Bearer" {
					response.Unauthorized(w, "invalid authorization header format")
					return
				}
				raw = parts[1]
			} else {
				// Websocket clients cannot set headers; they pass ?token= instead.
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				response.Unauthorized(w, "authorization required")
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				response.Unauthorized(w, "invalid token claims")
				return
			}

			userID, _ := claims["sub"].(string)
			email, _ := claims["email"].(string)

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, userEmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
