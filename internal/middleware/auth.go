package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/bensuskins/family-kitchen/internal/services"
)

type contextKey string

const UserContextKey contextKey = "user"

var errUnauthorized = errors.New("unauthorized")

// Authenticate accepts either a Bearer API token or a session cookie.
func Authenticate(authService *services.AuthService, tokenRepo repository.APITokenRepository, userRepo repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var user models.User
			var err error

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				user, err = userFromToken(r.Context(), tokenRepo, userRepo, authHeader)
			} else {
				user, err = authService.GetCurrentUser(r)
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func userFromToken(ctx context.Context, tokenRepo repository.APITokenRepository, userRepo repository.UserRepository, authHeader string) (models.User, error) {
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tokenString == "" {
		return models.User{}, errUnauthorized
	}

	token, err := tokenRepo.FindByTokenHash(ctx, repository.HashToken(tokenString))
	if err != nil {
		return models.User{}, err
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		return models.User{}, errUnauthorized
	}
	return userRepo.FindByID(ctx, token.CreatedByUserID)
}

// RequireHousehold rejects users that have not created or joined a household.
func RequireHousehold(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user.HouseholdID == nil || *user.HouseholdID == "" {
			writeError(w, http.StatusForbidden, "join or create a household first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUser(ctx context.Context) models.User {
	user, _ := ctx.Value(UserContextKey).(models.User)
	return user
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
