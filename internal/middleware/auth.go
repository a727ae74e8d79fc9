package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
)

// TokenCookie is the cookie the web client stores its session token in.
const TokenCookie = "token"

type Claims struct {
	UserID string `json:"user_id"`
	// LegacyUserID is the claim name used by tokens from the previous auth service.
	LegacyUserID string `json:"userId,omitempty"`
	Email        string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller id carried by the token.
func (c *Claims) Identity() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.LegacyUserID != "":
		return c.LegacyUserID
	default:
		return c.Subject
	}
}

// RequireAuth rejects requests without a valid token.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				writeAuthError(w, err.Error(), "auth_invalid_scheme")
				return
			}
			if tokenString == "" {
				writeAuthError(w, "missing authorization token", "auth_required")
				return
			}

			claims, err := parseToken(tokenString, jwtSecret)
			if err != nil {
				writeAuthError(w, "invalid token", "auth_invalid")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches the caller identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil || tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := parseToken(tokenString, jwtSecret)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// extractToken looks for a token in the Authorization header, then the token
// cookie, then the token query parameter.
func extractToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", fmt.Errorf("invalid authorization scheme")
		}
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), nil
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return r.URL.Query().Get("token"), nil
}

func parseToken(tokenString, jwtSecret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Identity() == "" {
		return nil, fmt.Errorf("token carries no user id")
	}
	return claims, nil
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.Identity())
	if claims.Email != "" {
		ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	}
	return ctx
}

// WithUserID returns a context carrying an authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func GetUserEmail(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func writeAuthError(w http.ResponseWriter, msg, code string) {
	writeJSONError(w, http.StatusUnauthorized, msg, code)
}
