package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"projectnest/internal/config"
	"projectnest/internal/services"
)

const oauthStateKey = "oauth_state"

// NewGitHubOAuthConfig returns nil when GitHub sign-in is not configured.
func NewGitHubOAuthConfig(cfg config.GitHubConfig, siteURL string) *oauth2.Config {
	if !cfg.Enabled() {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  siteURL + "/auth/github/callback",
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GitHubLogin redirects to GitHub's consent page.
func (h *AuthHandler) GitHubLogin(c *gin.Context) {
	if h.github == nil {
		respondError(c, fmt.Errorf("github sign-in is not configured: %w", services.ErrUnavailable))
		return
	}
	state, err := generateStateToken()
	if err != nil {
		respondError(c, fmt.Errorf("generate oauth state: %w", err))
		return
	}

	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	session.Save()

	c.Redirect(http.StatusTemporaryRedirect, h.github.AuthCodeURL(state))
}

// GitHubCallback finishes the OAuth flow and logs the user in.
func (h *AuthHandler) GitHubCallback(c *gin.Context) {
	if h.github == nil {
		respondError(c, fmt.Errorf("github sign-in is not configured: %w", services.ErrUnavailable))
		return
	}

	session := sessions.Default(c)
	saved, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	session.Save()
	if saved == "" || c.Query("state") != saved {
		badRequest(c, "invalid oauth state")
		return
	}
	code := c.Query("code")
	if code == "" {
		badRequest(c, "missing authorization code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.github.Exchange(ctx, code)
	if err != nil {
		respondError(c, fmt.Errorf("exchange github code: %w", err))
		return
	}

	identity, err := h.fetchGitHubIdentity(ctx, h.github.Client(ctx, token))
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := h.auth.SignInWithGitHub(ctx, *identity)
	if err != nil {
		respondError(c, err)
		return
	}

	login(c, user.ID)
	c.Redirect(http.StatusFound, h.siteURL+"/")
}

func (h *AuthHandler) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.githubAPI+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (h *AuthHandler) fetchGitHubIdentity(ctx context.Context, client *http.Client) (*services.GitHubIdentity, error) {
	var u githubUser
	if err := h.getJSON(ctx, client, "/user", &u); err != nil {
		return nil, fmt.Errorf("fetch github user: %w", err)
	}

	email := u.Email
	if email == "" {
		// private emails are only listed by /user/emails
		var emails []githubEmail
		if err := h.getJSON(ctx, client, "/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	return &services.GitHubIdentity{
		ID:        strconv.FormatInt(u.ID, 10),
		Login:     u.Login,
		Email:     email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		HTMLURL:   u.HTMLURL,
	}, nil
}
