/**
 * @description
 * Authentication middleware for the collections API. Operators authenticate
 * with an HS256 bearer token whose subject becomes the audit actor; the
 * scheduler and other services use the internal API key.
 */
package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/transfa/collections-service/internal/domain"
)

// AuthMiddleware validates the bearer token and puts its subject on the
// request context as the acting operator.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				respondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || strings.TrimSpace(subject) == "" {
				respondWithError(w, http.StatusUnauthorized, "subject not found in token")
				return
			}

			ctx := domain.WithActor(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalAuthMiddleware validates the internal API key for server-to-server
// calls. Requests act as the system actor.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey != "" {
				provided := r.Header.Get("X-Internal-API-Key")
				if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(requiredKey)) != 1 {
					respondWithError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
			}
			ctx := domain.WithActor(r.Context(), domain.SystemActor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
