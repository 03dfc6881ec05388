package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookmarkService_Toggle(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")
	p := e.project(t, ada, "Compiler", "go")

	_, err := e.bookmarks.Toggle(ctx, bob, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	on, err := e.bookmarks.Toggle(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.True(t, on)

	marked, err := e.bookmarks.IsBookmarked(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	mine, err := e.bookmarks.ListMine(ctx, bob)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Compiler", mine[0].Project.Title)
	assert.Equal(t, "ada", mine[0].Project.Owner.Username)

	on, err = e.bookmarks.Toggle(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.False(t, on)

	mine, err = e.bookmarks.ListMine(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
