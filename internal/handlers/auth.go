package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bensuskins/family-kitchen/internal/middleware"
	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/services"
)

type AuthHandler struct {
	authService      *services.AuthService
	householdService *services.HouseholdService
}

func NewAuthHandler(authService *services.AuthService, householdService *services.HouseholdService) *AuthHandler {
	return &AuthHandler{authService: authService, householdService: householdService}
}

// Login starts a sign-in. An ?invite= token is carried through the identity
// provider round trip and redeemed once the user is known.
func (handler *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	invite := r.URL.Query().Get("invite")

	if !handler.authService.OIDCConfigured() {
		user, err := handler.authService.DevLogin(r.Context())
		if err != nil {
			slog.Error("dev login", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		handler.completeLogin(w, r, user, invite)
		return
	}

	loginURL, err := handler.authService.BeginLogin(w, invite)
	if err != nil {
		slog.Error("starting login", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, loginURL, http.StatusFound)
}

func (handler *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	user, pending, err := handler.authService.FinishLogin(w, r)
	if errors.Is(err, services.ErrLoginRejected) {
		slog.Warn("rejected login callback", "error", err)
		http.Error(w, "Invalid login attempt", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("handling callback", "error", err)
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}
	handler.completeLogin(w, r, user, pending.Invite)
}

// completeLogin redeems any invite, then starts the session. A failed invite does
// not block sign-in; the redirect tells the frontend how it went.
func (handler *AuthHandler) completeLogin(w http.ResponseWriter, r *http.Request, user models.User, invite string) {
	target := "/"
	if invite != "" {
		if _, err := handler.householdService.Join(r.Context(), user, invite); err != nil {
			slog.Warn("redeeming invite at login", "user", user.ID, "error", err)
			target = "/?invite=rejected"
		} else {
			target = "/?invite=accepted"
		}
	}

	if err := handler.authService.SetSession(w, user.ID); err != nil {
		slog.Error("setting session", "error", err)
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (handler *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handler.authService.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (handler *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.GetUser(r.Context()))
}
