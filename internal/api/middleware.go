/**
 * @description
 * This file contains custom middleware for the HTTP router. The authentication
 * middleware resolves each request to an identity: either a user (from a signed
 * JWT) or an API key (from the x-api-key header). Handlers read the identity
 * from the request context and apply permission checks against it.
 *
 * @dependencies
 * - context, crypto/subtle, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 * - internal/app, internal/domain: Secret verification and identity models.
 */

package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/domain"
)

// identityContextKey is a custom type for the context key to avoid collisions.
type identityContextKey string

const identityKey identityContextKey = "identity"

const apiKeyHeader = "x-api-key"

// AuthMiddleware creates a middleware that authenticates requests. An x-api-key
// header is resolved through the key manager; otherwise a Bearer JWT signed
// with the shared secret identifies a user directly. API key verification is
// attempted first so a request carrying both credentials acts as the key, with
// the key's narrower permissions.
func AuthMiddleware(jwtSecret string, keyManager *app.KeyManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret := r.Header.Get(apiKeyHeader); secret != "" {
				key, err := keyManager.VerifySecret(r.Context(), secret)
				if err != nil {
					if !errors.Is(err, app.ErrInvalidAPIKey) {
						log.Printf("level=error component=api msg=\"api key verification failed\" err=%v", err)
						http.Error(w, "Unable to verify API key", http.StatusInternalServerError)
						return
					}
					http.Error(w, "Invalid API key", http.StatusUnauthorized)
					return
				}
				ctx := context.WithValue(r.Context(), identityKey, domain.APIKeyIdentity{Key: key})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
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
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			subject, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "User ID not found in token", http.StatusUnauthorized)
				return
			}
			userID, err := uuid.Parse(subject)
			if err != nil {
				http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, domain.UserIdentity{ID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalKeyMiddleware guards service-to-service endpoints with a shared
// static key. An unconfigured key rejects everything.
func InternalKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("x-internal-api-key")
			if expectedKey == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(expectedKey)) != 1 {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFrom retrieves the authenticated identity from the request context.
// Handlers should use this function to get the caller's identity.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
