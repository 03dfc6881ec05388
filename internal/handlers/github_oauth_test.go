package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"projectnest/internal/db"
	"projectnest/internal/models"
	"projectnest/internal/services"
)

// fakeGitHub serves the token exchange and the two REST calls used at sign-in.
type fakeGitHub struct {
	mu     sync.Mutex
	codes  []string
	tokens []string
	user   map[string]any
	emails []map[string]any
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/login/oauth/access_token":
		r.ParseForm()
		f.codes = append(f.codes, r.Form.Get("code"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_test", "token_type": "bearer"})
	case "/user":
		f.tokens = append(f.tokens, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(f.user)
	case "/user/emails":
		json.NewEncoder(w).Encode(f.emails)
	default:
		http.NotFound(w, r)
	}
}

func newOAuthEngine(t *testing.T, gh *fakeGitHub) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb, zap.NewNop()))

	stub := httptest.NewServer(gh)
	t.Cleanup(stub.Close)

	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://nest.test/auth/github/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   stub.URL + "/login/oauth/authorize",
			TokenURL:  stub.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	h := NewAuthHandler(services.NewAuthService(gdb, zap.NewNop()), services.NewCaptchaService(), cfg, "http://nest.test")
	h.githubAPI = stub.URL

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.GET("/auth/github/login", h.GitHubLogin)
	r.GET("/auth/github/callback", h.GitHubCallback)
	return r, gdb
}

func serve(r *gin.Engine, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// startLogin returns the session cookies and the state sent to GitHub.
func startLogin(t *testing.T, r *gin.Engine) ([]*http.Cookie, string) {
	t.Helper()
	w := serve(r, "/auth/github/login", nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return w.Result().Cookies(), state
}

func TestGitHubCallback_RejectsBadState(t *testing.T) {
	gh := &fakeGitHub{user: map[string]any{"id": 42, "login": "octo"}}
	r, _ := newOAuthEngine(t, gh)
	cookies, state := startLogin(t, r)

	w := serve(r, "/auth/github/callback?state=forged&code=abc", cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, "/auth/github/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "state without its session")

	w = serve(r, "/auth/github/callback?state="+url.QueryEscape(state), cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing code")

	assert.Empty(t, gh.codes, "no code is exchanged before the state matches")
}

func TestGitHubCallback_SignsInWithPrivateEmail(t *testing.T) {
	gh := &fakeGitHub{
		user: map[string]any{"id": 42, "login": "octo", "name": "Octo Cat", "email": "", "html_url": "https://github.com/octo"},
		emails: []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "Octo@Example.com", "primary": true, "verified": true},
		},
	}
	r, gdb := newOAuthEngine(t, gh)
	cookies, state := startLogin(t, r)

	w := serve(r, "/auth/github/callback?state="+url.QueryEscape(state)+"&code=abc", cookies)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "http://nest.test/", w.Header().Get("Location"))
	assert.NotEmpty(t, w.Result().Cookies(), "session is written")

	assert.Equal(t, []string{"abc"}, gh.codes)
	assert.Equal(t, []string{"Bearer gho_test"}, gh.tokens)

	var user models.User
	require.NoError(t, gdb.Where("github_id = ?", "42").First(&user).Error)
	assert.Equal(t, "octo@example.com", user.Email)
	assert.Equal(t, "octo", user.Username)
	assert.Equal(t, "https://github.com/octo", user.GitHubURL)

	// the state is single use
	w = serve(r, "/auth/github/callback?state="+url.QueryEscape(state)+"&code=abc", w.Result().Cookies())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGitHubCallback_NoVerifiedEmail(t *testing.T) {
	gh := &fakeGitHub{
		user:   map[string]any{"id": 7, "login": "ghost"},
		emails: []map[string]any{{"email": "ghost@example.com", "primary": true, "verified": false}},
	}
	r, gdb := newOAuthEngine(t, gh)
	cookies, state := startLogin(t, r)

	w := serve(r, "/auth/github/callback?state="+url.QueryEscape(state)+"&code=xyz", cookies)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, gdb.Where("github_id = ?", "7").First(&user).Error)
	assert.Equal(t, "github-7@users.noreply.github.com", user.Email)
}
