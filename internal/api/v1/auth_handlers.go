package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/config"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const refreshCookie = "refresh_token"

// googleIdentity is what a Google sign-in yields once the code is exchanged
// and the id token validated.
type googleIdentity struct {
	Email     string
	FirstName string
	LastName  string
}

type AuthHandler struct {
	cfg    *config.Config
	user   *service.UserService
	logger *zap.Logger
	// exchange turns an authorization code into a verified identity.
	exchange func(ctx context.Context, code string) (*googleIdentity, error)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func NewAuthHandler(cfg *config.Config, userSvc *service.UserService, logger *zap.Logger) *AuthHandler {
	h := &AuthHandler{cfg: cfg, user: userSvc, logger: logger}
	h.exchange = h.googleExchange
	return h
}

// Login handler
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, badBody(err))
		return
	}
	u, err := h.user.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	sess, err := h.user.StartSession(r.Context(), u)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	h.setRefreshCookie(w, r, sess.RefreshToken, sess.RefreshExpires)
	utils.WriteJSONResponse(w, http.StatusOK, true, "login successful",
		tokenResp{AccessToken: sess.AccessToken, ExpiresIn: sess.ExpiresIn}, nil)
}

// Logout revokes the refresh token held in the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(h.logger, w, r, apperr.Validation("missing refresh token cookie"))
		return
	}
	if err := h.user.EndSession(r.Context(), cookie.Value); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Env != "development",
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteJSONResponse(w, http.StatusOK, true, "logged out", nil, nil)
}

// Refresh rotates the refresh token and returns a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(h.logger, w, r, apperr.New(apperr.CodeUnauthorized, "missing refresh token cookie"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, err := h.user.RefreshSession(ctx, cookie.Value)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	h.setRefreshCookie(w, r, sess.RefreshToken, sess.RefreshExpires)
	utils.WriteJSONResponse(w, http.StatusOK, true, "refresh successful",
		tokenResp{AccessToken: sess.AccessToken, ExpiresIn: sess.ExpiresIn}, nil)
}

func (h *AuthHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(h.logger, w, r, apperr.Validation("bad request", "code: required"))
		return
	}

	id, err := h.exchange(r.Context(), req.Code)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	u, err := h.user.ResolveGoogleUser(r.Context(), id.Email, id.FirstName, id.LastName)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	sess, err := h.user.StartSession(r.Context(), u)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	h.setRefreshCookie(w, r, sess.RefreshToken, sess.RefreshExpires)
	utils.WriteJSONResponse(w, http.StatusOK, true, "login successful",
		tokenResp{AccessToken: sess.AccessToken, ExpiresIn: sess.ExpiresIn}, nil)
}

func (h *AuthHandler) googleExchange(ctx context.Context, code string) (*googleIdentity, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     h.cfg.GoogleClientID,
		ClientSecret: h.cfg.GoogleClientSecret,
		RedirectURL:  h.cfg.GoogleRedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}

	// server-side exchange using the client secret
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnauthorized, "code exchange failed")
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperr.New(apperr.CodeUnauthorized, "id_token not present in token response")
	}
	// audience must be our client id
	payload, err := idtoken.Validate(ctx, rawIDToken, h.cfg.GoogleClientID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnauthorized, "invalid id token")
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, apperr.Validation("email not present in token")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, apperr.New(apperr.CodeForbidden, "google email not verified")
	}
	first, _ := payload.Claims["given_name"].(string)
	last, _ := payload.Claims["family_name"].(string)
	return &googleIdentity{Email: email, FirstName: first, LastName: last}, nil
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, r *http.Request, value string, expires time.Time) {
	host := r.Host // example: "api.myapp.com" or "localhost:8080"
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Env != "development",
		SameSite: http.SameSiteLaxMode,
		Domain:   host,
		Expires:  expires,
	})
}
