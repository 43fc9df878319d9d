package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixelharbor/imageconvbackend/models"
	"github.com/pixelharbor/imageconvbackend/repository"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// UserContextKey is the key used to store the user object in the request context.
const UserContextKey ContextKey = "user"

// UserFromContext returns the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

func resolveUser(r *http.Request, userRepo repository.UserRepository, jwtSecret []byte) (*models.User, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, fmt.Errorf("authorization header format must be Bearer {token}")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	var userID uint
	if _, err := fmt.Sscan(claims.Subject, &userID); err != nil {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	user, err := userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

// AuthMiddleware requires a valid bearer token and places the user in
// the request context.
func AuthMiddleware(userRepo repository.UserRepository, jwtSecret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := resolveUser(r, userRepo, jwtSecret)
		if err != nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		if user == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "authorization header required")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthMiddleware resolves a bearer token when present but lets
// anonymous requests through with no user in context. Used by the
// public convert endpoint.
func OptionalAuthMiddleware(userRepo repository.UserRepository, jwtSecret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := resolveUser(r, userRepo, jwtSecret)
		if err != nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		if user != nil {
			r = r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
		}
		next.ServeHTTP(w, r)
	})
}
