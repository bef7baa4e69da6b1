package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/config"
	"github.com/uchkunrakhimow/auth-kit/internal/oidc"
	"github.com/uchkunrakhimow/auth-kit/internal/sessions"
	"github.com/uchkunrakhimow/auth-kit/internal/tokens"
	"github.com/uchkunrakhimow/auth-kit/internal/users"
	"github.com/uchkunrakhimow/auth-kit/pkg/device"
	"github.com/uchkunrakhimow/auth-kit/pkg/logger"
	"github.com/uchkunrakhimow/auth-kit/pkg/metrics"
	"github.com/uchkunrakhimow/auth-kit/pkg/middleware"
	"github.com/uchkunrakhimow/auth-kit/pkg/password"
)

// stateTTL bounds how long an OAuth round trip may take.
const stateTTL = 10 * time.Minute

// CodeExchanger swaps an authorization code for a raw ID token. The
// production implementation wraps oauth2.Config; tests fake it.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (rawIDToken string, err error)
}

type oauthExchanger struct {
	cfg *oauth2.Config
}

func (e *oauthExchanger) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := e.cfg.Exchange(ctx, code)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnauthenticated, err, "code exchange failed")
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", apperr.Unauthenticated("token response carried no id_token")
	}
	return raw, nil
}

// NewCodeExchanger builds the production exchanger from configuration.
func NewCodeExchanger(cfg *config.Config, authURL, tokenURL string) CodeExchanger {
	return &oauthExchanger{cfg: &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURL,
		Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		Scopes:       []string{"openid", "email", "profile"},
	}}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler owns the registration, login, and logout surface.
type AuthHandler struct {
	cfg      *config.Config
	users    *users.Service
	sessions *sessions.Service
	verifier oidc.TokenVerifier
	exchange CodeExchanger
	authURL  string
}

// NewAuthHandler wires the handler. verifier/exchange/authURL may be
// zero when OAuth is not configured; the oauth routes then 503.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, v oidc.TokenVerifier, ex CodeExchanger, authURL string) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: u, sessions: s, verifier: v, exchange: ex, authURL: authURL}
}

func (h *AuthHandler) Register(rg *gin.RouterGroup, authn gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/register", h.RegisterUser)
	a.POST("/login", h.Login)
	a.GET("/oauth/login", h.OAuthLogin)
	a.GET("/oauth/callback", h.OAuthCallback)
	a.POST("/logout", authn, h.Logout)
	a.POST("/logout-all", authn, h.LogoutAll)
}

// issueSession creates a session for the user and sets the cookie.
// The opaque token appears once in the response body and never in a
// log line.
func (h *AuthHandler) issueSession(c *gin.Context, userID string) (*sessions.Session, string, error) {
	token, err := tokens.NewSessionToken()
	if err != nil {
		return nil, "", err
	}
	info := device.Extract(c.Request)
	sess, err := h.sessions.Create(c.Request.Context(), userID, token, info, 0)
	if err != nil {
		return nil, "", err
	}
	c.SetCookie(h.cfg.Session.CookieName, token, int(sessions.SessionTTL.Seconds()), "/", "", h.cfg.Session.CookieSecure, true)
	return sess, token, nil
}

func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	digest, err := password.Hash(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password hashing failed"})
		return
	}
	u, err := h.users.Create(c.Request.Context(), users.CreateParams{
		Email:        req.Email,
		PasswordHash: digest,
		Name:         req.Name,
	})
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	metrics.Registrations.Inc()

	sess, token, err := h.issueSession(c, u.ID)
	if err != nil {
		logger.Errorf("session create failed for user %s: %v", u.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u.Public(), "token": token, "sessionId": sess.ID})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "login failed"})
		return
	}
	if u == nil || u.PasswordHash == "" {
		// same response as a wrong password; no account enumeration
		metrics.Logins.WithLabelValues("password", "failure").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	ok, err := password.Verify(req.Password, u.PasswordHash)
	if err != nil || !ok {
		metrics.Logins.WithLabelValues("password", "failure").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	sess, token, err := h.issueSession(c, u.ID)
	if err != nil {
		logger.Errorf("session create failed for user %s: %v", u.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session create failed"})
		return
	}
	metrics.Logins.WithLabelValues("password", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"user": u.Public(), "token": token, "sessionId": sess.ID})
}

// OAuthLogin redirects the browser to the provider with a signed,
// expiring state parameter.
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	if h.exchange == nil || h.authURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "oauth not configured"})
		return
	}
	state, err := tokens.GenerateState(h.cfg.OAuth.StateSecret, stateTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state generation failed"})
		return
	}
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", h.cfg.OAuth.ClientID)
	q.Set("redirect_uri", h.cfg.OAuth.RedirectURL)
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	c.Redirect(http.StatusFound, h.authURL+"?"+q.Encode())
}

// OAuthCallback finishes the handshake: state check, code exchange,
// token verification, directory reconciliation, session issue.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	if h.exchange == nil || h.verifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "oauth not configured"})
		return
	}
	if err := tokens.VerifyState(h.cfg.OAuth.StateSecret, c.Query("state")); err != nil {
		metrics.Logins.WithLabelValues("oauth", "failure").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid state"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	raw, err := h.exchange.Exchange(c.Request.Context(), code)
	if err != nil {
		metrics.Logins.WithLabelValues("oauth", "failure").Inc()
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "authentication failed"})
		return
	}
	tok, err := h.verifier.Verify(c.Request.Context(), raw)
	if err != nil {
		metrics.Logins.WithLabelValues("oauth", "failure").Inc()
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "invalid id token"})
		return
	}
	claim, err := oidc.ExtractClaim(tok)
	if err != nil {
		metrics.Logins.WithLabelValues("oauth", "failure").Inc()
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	u, err := h.users.Reconcile(c.Request.Context(), claim)
	if err != nil {
		logger.Errorf("reconcile failed for external id %s: %v", claim.ExternalID, err)
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "reconciliation failed"})
		return
	}

	sess, token, err := h.issueSession(c, u.ID)
	if err != nil {
		logger.Errorf("session create failed for user %s: %v", u.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session create failed"})
		return
	}
	metrics.Logins.WithLabelValues("oauth", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"user": u.Public(), "token": token, "sessionId": sess.ID})
}

// Logout destroys the current session. Destroying an already-gone
// session still succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := ""
	if v, err := c.Cookie(h.cfg.Session.CookieName); err == nil {
		token = v
	}
	if token == "" {
		// bearer clients: the validated token is the one to revoke
		sessID := c.GetString(middleware.ContextSessionID)
		if sessID != "" {
			if err := h.sessions.DestroyForUser(c.Request.Context(), sessID, c.GetString(middleware.ContextUserID)); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
				c.JSON(apperr.HTTPStatus(err), gin.H{"error": "logout failed"})
				return
			}
		}
	} else if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "logout failed"})
		return
	}
	c.SetCookie(h.cfg.Session.CookieName, "", -1, "/", "", h.cfg.Session.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll destroys every session of the calling user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	n, err := h.sessions.DestroyAllForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "logout failed"})
		return
	}
	c.SetCookie(h.cfg.Session.CookieName, "", -1, "/", "", h.cfg.Session.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere", "sessionsRevoked": n})
}
