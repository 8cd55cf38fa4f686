package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stashbin/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// AuthenticatedKey is the context key for the caller's authentication state.
const AuthenticatedKey contextKey = "authenticated"

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// IsAuthenticated reports whether the request carried a valid token.
// Unauthenticated callers go through guest admission control.
func IsAuthenticated(ctx context.Context) bool {
	authenticated, _ := ctx.Value(AuthenticatedKey).(bool)
	return authenticated
}

// parseToken validates a Bearer JWT from the Authorization header and
// returns the subject claim, or "" when the header is absent or invalid.
func parseToken(r *http.Request, jwtSecret string) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	userID, _ := claims["sub"].(string)
	return userID
}

// OptionalAuth records whether the caller presented a valid Bearer JWT.
// It never rejects: anonymous callers proceed as guests.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := parseToken(r, jwtSecret)
			ctx := context.WithValue(r.Context(), AuthenticatedKey, userID != "")
			if userID != "" {
				ctx = context.WithValue(ctx, UserIDKey, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth returns middleware that rejects requests without a valid
// Bearer JWT.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := parseToken(r, jwtSecret)
			if userID == "" {
				response.Unauthorized(w, "invalid or missing token")
				return
			}
			ctx := context.WithValue(r.Context(), AuthenticatedKey, true)
			ctx = context.WithValue(ctx, UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
