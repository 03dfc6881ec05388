package services

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	tests := []struct {
		name                      string
		email, username, password string
		want                      error
	}{
		{"bad email", "not-an-email", "ada", "longenough", ErrInvalidInput},
		{"bad username", "ada@nest.test", "a", "longenough", ErrInvalidInput},
		{"short password", "ada@nest.test", "ada", "short", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Register(ctx, tt.email, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	user, err := e.auth.Register(ctx, "Ada@Nest.Test", "ada", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@nest.test", user.Email)
	assert.NotEqual(t, "correct horse", user.Password)

	_, err = e.auth.Register(ctx, "ada@nest.test", "ada2", "correct horse")
	assert.ErrorIs(t, err, ErrConflict)

	got, err := e.auth.Login(ctx, "ADA@nest.test", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = e.auth.Login(ctx, "ada", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = e.auth.Login(ctx, "ada", "wrong password")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.auth.Login(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.auth.UserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthService_SignInWithGitHub(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	existing, err := e.auth.Register(ctx, "ada@nest.test", "ada", "correct horse")
	require.NoError(t, err)

	// matched by email, then linked
	linked, err := e.auth.SignInWithGitHub(ctx, GitHubIdentity{ID: "42", Login: "ada-gh", Email: "ada@nest.test", HTMLURL: "https://github.com/ada-gh"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.ID)

	// matched by github id even when the email changed
	again, err := e.auth.SignInWithGitHub(ctx, GitHubIdentity{ID: "42", Email: "other@nest.test"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, again.ID)
	assert.Equal(t, "https://github.com/ada-gh", again.GitHubURL)

	// new account; the login clashes with an existing username
	created, err := e.auth.SignInWithGitHub(ctx, GitHubIdentity{ID: "7", Login: "ada", Name: "Ada Two"})
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, created.ID)
	assert.True(t, ValidUsername(created.Username))
	assert.NotEqual(t, "ada", created.Username)
	assert.Equal(t, "github-7@users.noreply.github.com", created.Email)
	assert.Empty(t, created.Password)

	// password login stays closed for OAuth-only accounts
	_, err = e.auth.Login(ctx, created.Username, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.auth.SignInWithGitHub(ctx, GitHubIdentity{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCaptcha(t *testing.T) {
	s := NewCaptchaService()
	for range 50 {
		q, answer := s.GenerateMathProblem()
		assert.NotEmpty(t, q)
		assert.GreaterOrEqual(t, answer, 0)
		assert.True(t, CheckAnswer(" "+strconv.Itoa(answer)+" ", answer))
		assert.False(t, CheckAnswer(strconv.Itoa(answer+1), answer))
	}
	assert.False(t, CheckAnswer("3", nil))
	assert.False(t, CheckAnswer("x", 3))
}
