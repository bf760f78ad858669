package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bensuskins/family-kitchen/internal/config"
	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"
)

const (
	sessionCookieName = "session"
	loginCookieName   = "pending_login"
	sessionMaxAge     = 30 * 24 * 60 * 60
	loginMaxAge       = 5 * 60

	devSubject = "dev-local"
)

// ErrLoginRejected marks a callback that does not belong to a login this browser started.
var ErrLoginRejected = errors.New("login rejected")

// AuthService signs users in through OIDC, or as a local dev user when no issuer is
// configured, and tracks them with signed cookies.
type AuthService struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	cookies     *securecookie.SecureCookie
	userRepo    repository.UserRepository
}

type SessionData struct {
	UserID string `json:"userId"`
}

// PendingLogin lives in a short-lived cookie while the browser is at the identity
// provider. Invite is a household invite token to redeem once the user is known.
type PendingLogin struct {
	State  string `json:"state"`
	Invite string `json:"invite,omitempty"`
}

type identity struct {
	subject   string
	email     string
	name      string
	avatarURL string
}

func NewAuthService(ctx context.Context, cfg config.Config, userRepo repository.UserRepository) (*AuthService, error) {
	cookies := securecookie.New([]byte(cfg.SessionSecret), nil)
	cookies.SetSerializer(securecookie.JSONEncoder{})
	service := &AuthService{cookies: cookies, userRepo: userRepo}

	if cfg.OIDCIssuer == "" {
		slog.Warn("OIDC not configured, /auth/login signs in a local dev user")
		return service, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("creating OIDC provider: %w", err)
	}
	service.oauthConfig = &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	service.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})
	return service, nil
}

func (service *AuthService) OIDCConfigured() bool {
	return service.oauthConfig != nil
}

// BeginLogin stores a pending login carrying invite and returns the identity provider
// URL to send the browser to.
func (service *AuthService) BeginLogin(w http.ResponseWriter, invite string) (string, error) {
	if service.oauthConfig == nil {
		return "", errors.New("OIDC not configured")
	}

	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	pending := PendingLogin{State: base64.URLEncoding.EncodeToString(bytes), Invite: invite}

	if err := service.writeCookie(w, loginCookieName, pending, loginMaxAge); err != nil {
		return "", err
	}
	return service.oauthConfig.AuthCodeURL(pending.State), nil
}

// FinishLogin matches the callback request against the pending login, exchanges the
// code and provisions the user. The pending login cookie is cleared in every case.
func (service *AuthService) FinishLogin(w http.ResponseWriter, r *http.Request) (models.User, PendingLogin, error) {
	var pending PendingLogin
	err := service.readCookie(r, loginCookieName, &pending)
	service.clearCookie(w, loginCookieName)
	if err != nil {
		return models.User{}, PendingLogin{}, fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}
	if pending.State == "" || r.URL.Query().Get("state") != pending.State {
		return models.User{}, PendingLogin{}, fmt.Errorf("%w: state mismatch", ErrLoginRejected)
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		return models.User{}, PendingLogin{}, fmt.Errorf("%w: missing code", ErrLoginRejected)
	}
	if service.oauthConfig == nil {
		return models.User{}, PendingLogin{}, errors.New("OIDC not configured")
	}

	who, err := service.exchange(r.Context(), code)
	if err != nil {
		return models.User{}, PendingLogin{}, err
	}
	user, err := service.provisionUser(r.Context(), who)
	if err != nil {
		return models.User{}, PendingLogin{}, err
	}
	return user, pending, nil
}

func (service *AuthService) exchange(ctx context.Context, code string) (identity, error) {
	token, err := service.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return identity{}, fmt.Errorf("exchanging code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return identity{}, errors.New("no id_token in response")
	}
	idToken, err := service.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity{}, fmt.Errorf("verifying id token: %w", err)
	}

	var claims struct {
		Subject           string `json:"sub"`
		Email             string `json:"email"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
		Picture           string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return identity{}, fmt.Errorf("parsing claims: %w", err)
	}

	who := identity{subject: claims.Subject, email: claims.Email, name: claims.Name, avatarURL: claims.Picture}
	for _, fallback := range []string{claims.PreferredUsername, claims.Email} {
		if who.name == "" {
			who.name = fallback
		}
	}
	return who, nil
}

// provisionUser returns the user for who.subject, creating it on first sign-in and
// refreshing a changed profile otherwise.
func (service *AuthService) provisionUser(ctx context.Context, who identity) (models.User, error) {
	user, err := service.userRepo.FindByOIDCSubject(ctx, who.subject)
	if errors.Is(err, sql.ErrNoRows) {
		created, err := service.userRepo.Create(ctx, models.User{
			OIDCSubject: who.subject,
			Email:       who.email,
			Name:        who.name,
			AvatarURL:   who.avatarURL,
		})
		if err != nil {
			return models.User{}, fmt.Errorf("creating user: %w", err)
		}
		slog.Info("provisioned new user", "id", created.ID, "name", created.Name)
		return created, nil
	}
	if err != nil {
		return models.User{}, fmt.Errorf("looking up user: %w", err)
	}

	if user.Name != who.name || user.Email != who.email || user.AvatarURL != who.avatarURL {
		if err := service.userRepo.UpdateProfile(ctx, user.ID, who.name, who.email, who.avatarURL); err != nil {
			slog.Warn("failed to update user profile on login", "user", user.ID, "error", err)
		} else {
			user.Name, user.Email, user.AvatarURL = who.name, who.email, who.avatarURL
		}
	}
	return user, nil
}

// DevLogin provisions the local dev user. Only usable while OIDC is not configured.
func (service *AuthService) DevLogin(ctx context.Context) (models.User, error) {
	if service.OIDCConfigured() {
		return models.User{}, errors.New("dev login is disabled when OIDC is configured")
	}
	return service.provisionUser(ctx, identity{subject: devSubject, email: "dev@localhost", name: "Dev User"})
}

func (service *AuthService) SetSession(w http.ResponseWriter, userID string) error {
	return service.writeCookie(w, sessionCookieName, SessionData{UserID: userID}, sessionMaxAge)
}

func (service *AuthService) GetSession(r *http.Request) (SessionData, error) {
	var session SessionData
	if err := service.readCookie(r, sessionCookieName, &session); err != nil {
		return SessionData{}, err
	}
	return session, nil
}

func (service *AuthService) ClearSession(w http.ResponseWriter) {
	service.clearCookie(w, sessionCookieName)
}

func (service *AuthService) GetCurrentUser(r *http.Request) (models.User, error) {
	session, err := service.GetSession(r)
	if err != nil {
		return models.User{}, err
	}

	user, err := service.userRepo.FindByID(r.Context(), session.UserID)
	if err != nil {
		return models.User{}, fmt.Errorf("finding user: %w", err)
	}
	return user, nil
}

func (service *AuthService) writeCookie(w http.ResponseWriter, name string, value any, maxAge int) error {
	encoded, err := service.cookies.Encode(name, value)
	if err != nil {
		return fmt.Errorf("encoding %s cookie: %w", name, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	return nil
}

func (service *AuthService) readCookie(r *http.Request, name string, dst any) error {
	cookie, err := r.Cookie(name)
	if err != nil {
		return fmt.Errorf("no %s cookie: %w", name, err)
	}
	if err := service.cookies.Decode(name, cookie.Value, dst); err != nil {
		return fmt.Errorf("decoding %s cookie: %w", name, err)
	}
	return nil
}

func (service *AuthService) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
