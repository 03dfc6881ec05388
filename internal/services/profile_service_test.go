package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectnest/internal/config"
)

type stubAvatars struct {
	link string
	err  error
	got  []byte
}

func (s *stubAvatars) Upload(_ context.Context, image []byte, _ string) (string, error) {
	s.got = image
	return s.link, s.err
}

func strptr(s string) *string { return &s }

func TestProfileService_GetAndUpdate(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	e.user(t, "bob")
	e.project(t, ada, "Compiler")
	profiles := NewProfileService(e.db, e.cache, &stubAvatars{}, 1024, zap.NewNop())

	profile, err := profiles.Get(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, profile.User.ID)
	require.Len(t, profile.Projects, 1)
	assert.Equal(t, "Compiler", profile.Projects[0].Title)

	_, err = profiles.Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = profiles.Update(ctx, ada, ProfileInput{Username: strptr("bob")})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = profiles.Update(ctx, ada, ProfileInput{Username: strptr("a b")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = profiles.Update(ctx, ada, ProfileInput{WebsiteURL: strptr("javascript:alert(1)")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := profiles.Update(ctx, ada, ProfileInput{
		Username:   strptr("ada_l"),
		FullName:   strptr(" Ada Lovelace "),
		Bio:        strptr("analyst"),
		Skills:     []string{"Go", "go", "SQL"},
		GitHubURL:  strptr("https://github.com/ada"),
		WebsiteURL: strptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "ada_l", updated.Username)
	assert.Equal(t, "Ada Lovelace", updated.FullName)
	assert.Equal(t, []string{"go", "sql"}, []string(updated.Skills))
	assert.Equal(t, "https://github.com/ada", updated.GitHubURL)

	// untouched fields stay
	again, err := profiles.Update(ctx, updated, ProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "analyst", again.Bio)
}

// gifPixel is the start of a GIF89a file, enough for type detection.
var gifPixel = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")

func TestProfileService_SetAvatar(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	store := &stubAvatars{link: "https://img.test/a.png"}
	profiles := NewProfileService(e.db, e.cache, store, 64, zap.NewNop())

	_, err := profiles.SetAvatar(ctx, ada, append(gifPixel, make([]byte, 64)...), "a.gif")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = profiles.SetAvatar(ctx, ada, []byte("hi"), "a.txt")
	assert.ErrorIs(t, err, ErrInvalidInput)
	// a text body named like an image is still text
	_, err = profiles.SetAvatar(ctx, ada, []byte("<script>alert(1)</script>"), "a.png")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, store.got)

	user, err := profiles.SetAvatar(ctx, ada, gifPixel, "a.gif")
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/a.png", user.AvatarURL)
	assert.Equal(t, gifPixel, store.got)

	store.err = errors.New("boom")
	_, err = profiles.SetAvatar(ctx, ada, gifPixel, "a.gif")
	assert.Error(t, err)
}

func TestImgurStore_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Client-ID abc", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "base64", r.FormValue("type"))
		assert.Equal(t, "cG5n", r.FormValue("image"))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"status":  200,
			"data":    map[string]any{"id": "x1", "link": "https://i.test/x1.png"},
		})
	}))
	defer srv.Close()

	store := NewImgurStore(config.AvatarConfig{UploadURL: srv.URL, ClientID: "abc"})
	link, err := store.Upload(t.Context(), []byte("png"), "me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://i.test/x1.png", link)
}

func TestImgurStore_Failures(t *testing.T) {
	_, err := NewImgurStore(config.AvatarConfig{UploadURL: "http://unused"}).Upload(t.Context(), []byte("x"), "x.png")
	assert.ErrorIs(t, err, ErrUnavailable)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"status":400}`))
	}))
	defer srv.Close()

	_, err = NewImgurStore(config.AvatarConfig{UploadURL: srv.URL, ClientID: "abc"}).Upload(t.Context(), []byte("x"), "x.png")
	assert.ErrorContains(t, err, "status 400")
}
