/**
 * @description
 * This file contains custom middleware for the HTTP router. The checkout
 * endpoints are guarded by a handle token minted when an attempt is opened:
 * every step call must present the token for the attempt it targets, which
 * keeps one page's checkout from driving another page's attempt.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: HS256 signing and validation of handle tokens.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// AttemptIDContextKey is a custom type for the context key to avoid collisions.
type AttemptIDContextKey string

const attemptIDKey AttemptIDContextKey = "checkoutAttemptID"

// handleTokenTTL bounds how long a minted handle token stays usable. It is
// deliberately longer than the attempt TTL so the token never expires first.
const handleTokenTTL = 2 * time.Hour

// MintHandleToken signs a handle token binding the modal handle to its attempt.
func MintHandleToken(secret, attemptID, handleID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": attemptID,
		"jti": handleID,
		"iat": now.Unix(),
		"exp": now.Add(handleTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// HandleAuthMiddleware validates the handle token on step endpoints and
// checks it against the attempt named in the URL.
func HandleAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}
			if !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			attemptID, ok := claims["sub"].(string)
			if !ok || attemptID == "" {
				http.Error(w, "Attempt ID not found in token", http.StatusUnauthorized)
				return
			}

			// The token must match the attempt it is being used against.
			if urlID := chi.URLParam(r, "attemptID"); urlID != "" && urlID != attemptID {
				http.Error(w, "Token does not match attempt", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), attemptIDKey, attemptID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAttemptID retrieves the authenticated attempt ID from the request context.
func GetAttemptID(ctx context.Context) (string, bool) {
	attemptID, ok := ctx.Value(attemptIDKey).(string)
	return attemptID, ok
}
