package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/config"
	"github.com/uchkunrakhimow/auth-kit/internal/oidc"
	"github.com/uchkunrakhimow/auth-kit/internal/sessions"
	"github.com/uchkunrakhimow/auth-kit/internal/tokens"
	"github.com/uchkunrakhimow/auth-kit/internal/users"
	"github.com/uchkunrakhimow/auth-kit/pkg/middleware"
)

// in-memory sessions repo for handler tests
type fakeSessionsRepo struct {
	mu    sync.Mutex
	store map[string]*sessions.Session
}

func newFakeSessionsRepo() *fakeSessionsRepo {
	return &fakeSessionsRepo{store: map[string]*sessions.Session{}}
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *sessions.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.store {
		if existing.Token == s.Token {
			return apperr.Conflict("session token already exists")
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	f.store[s.ID] = &cp
	return nil
}

func (f *fakeSessionsRepo) GetByToken(ctx context.Context, token string) (*sessions.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.store {
		if s.Token == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionsRepo) GetByID(ctx context.Context, id string) (*sessions.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.store[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeSessionsRepo) ListByUser(ctx context.Context, userID string) ([]sessions.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sessions.Session
	for _, s := range f.store {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionsRepo) UpdateActivity(ctx context.Context, id string, lastActivity time.Time, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.store[id]; ok {
		s.LastActivity = lastActivity
		if expiresAt != nil {
			s.ExpiresAt = *expiresAt
		}
	}
	return nil
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store, id)
	return nil
}

func (f *fakeSessionsRepo) DeleteByToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.store {
		if s.Token == token {
			delete(f.store, id)
		}
	}
	return nil
}

func (f *fakeSessionsRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.store {
		if s.UserID == userID {
			delete(f.store, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// fakeExchanger returns a canned raw id token for any code.
type fakeExchanger struct {
	raw string
	err error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (string, error) {
	return f.raw, f.err
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Session.CookieName = "authkit_session"
	cfg.OAuth.ClientID = "cid"
	cfg.OAuth.StateSecret = "state-secret"
	cfg.OAuth.RedirectURL = "http://localhost/auth/oauth/callback"
	return cfg
}

type authEnv struct {
	router   *gin.Engine
	users    *users.Service
	sessions *sessions.Service
	cfg      *config.Config
}

func newAuthEnv(t *testing.T, verifier oidc.TokenVerifier, ex CodeExchanger) *authEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	uSvc := users.NewService(users.NewMemoryRepository())
	sSvc := sessions.NewService(newFakeSessionsRepo())
	authn := middleware.SessionAuth(sSvc, cfg.Session.CookieName)

	r := gin.New()
	h := NewAuthHandler(cfg, uSvc, sSvc, verifier, ex, "http://idp.example.com/authorize")
	h.Register(r.Group(""), authn)
	return &authEnv{router: r, users: uSvc, sessions: sSvc, cfg: cfg}
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := newJSONRequest(t, "POST", path, body)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	env := newAuthEnv(t, nil, nil)

	w := postJSON(t, env.router, "/auth/register", gin.H{
		"email":    "ann@example.com",
		"password": "s3cret-pass",
		"name":     "Ann",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Token)
	require.Equal(t, "ann@example.com", created.User.Email)
	require.NotContains(t, w.Body.String(), "passwordHash")

	// duplicate email
	w = postJSON(t, env.router, "/auth/register", gin.H{
		"email":    "ann@example.com",
		"password": "other-pass-123",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// correct password
	w = postJSON(t, env.router, "/auth/login", gin.H{"email": "ann@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)

	// wrong password and unknown email look identical
	w = postJSON(t, env.router, "/auth/login", gin.H{"email": "ann@example.com", "password": "wrong-pass-1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = postJSON(t, env.router, "/auth/login", gin.H{"email": "ghost@example.com", "password": "wrong-pass-1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	env := newAuthEnv(t, nil, nil)

	w := postJSON(t, env.router, "/auth/register", gin.H{"email": "bob@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	ck := &http.Cookie{Name: env.cfg.Session.CookieName, Value: created.Token}
	w = postJSON(t, env.router, "/auth/logout", gin.H{}, ck)
	require.Equal(t, http.StatusOK, w.Code)

	// token no longer validates
	s, err := env.sessions.Validate(context.Background(), created.Token)
	require.NoError(t, err)
	require.Nil(t, s)

	// logging out an already-dead session is still a 401 at the guard,
	// not a 500
	w = postJSON(t, env.router, "/auth/logout", gin.H{}, ck)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAll(t *testing.T) {
	env := newAuthEnv(t, nil, nil)

	w := postJSON(t, env.router, "/auth/register", gin.H{"email": "cara@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, w.Code)
	var first struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// second device
	w = postJSON(t, env.router, "/auth/login", gin.H{"email": "cara@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))

	ck := &http.Cookie{Name: env.cfg.Session.CookieName, Value: first.Token}
	w = postJSON(t, env.router, "/auth/logout-all", gin.H{}, ck)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"sessionsRevoked":2`)

	for _, tok := range []string{first.Token, second.Token} {
		s, err := env.sessions.Validate(context.Background(), tok)
		require.NoError(t, err)
		require.Nil(t, s)
	}
}

func oauthIDToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(claims)
	require.NoError(t, err)
	return "hdr." + base64.RawURLEncoding.EncodeToString(b) + ".sig"
}

func TestOAuthCallback(t *testing.T) {
	raw := oauthIDToken(t, map[string]interface{}{
		"sub":     "ext-1",
		"email":   "dana@example.com",
		"name":    "Dana",
		"picture": "https://img.example.com/dana.png",
	})
	env := newAuthEnv(t, oidc.NewInsecureVerifier(), &fakeExchanger{raw: raw})

	state, err := tokens.GenerateState(env.cfg.OAuth.StateSecret, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/auth/oauth/callback?code=abc&state="+state, nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"email":"dana@example.com"`)

	// directory entry was created and linked
	u, err := env.users.FindByExternalID(context.Background(), "ext-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "Dana", u.Name)
}

func TestOAuthCallbackRejectsBadState(t *testing.T) {
	raw := oauthIDToken(t, map[string]interface{}{"sub": "ext-2", "email": "eve@example.com"})
	env := newAuthEnv(t, oidc.NewInsecureVerifier(), &fakeExchanger{raw: raw})

	req := httptest.NewRequest("GET", "/auth/oauth/callback?code=abc&state=forged", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOAuthLoginRedirects(t *testing.T) {
	env := newAuthEnv(t, oidc.NewInsecureVerifier(), &fakeExchanger{})

	req := httptest.NewRequest("GET", "/auth/oauth/login", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	require.Contains(t, loc, "http://idp.example.com/authorize?")
	require.Contains(t, loc, "state=")
	require.Contains(t, loc, "client_id=cid")
}
