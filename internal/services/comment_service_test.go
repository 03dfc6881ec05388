package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectnest/internal/models"
)

func TestCommentService_ListBuildsThreads(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")
	p := e.project(t, ada, "Compiler")

	root, err := e.comments.Create(ctx, bob, p.ID, "Looks **great**", nil)
	require.NoError(t, err)
	reply, err := e.comments.Create(ctx, ada, p.ID, "thanks", &root.ID)
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, bob, p.ID, "np", &reply.ID)
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, ada, p.ID, "second root", nil)
	require.NoError(t, err)

	forest, err := e.comments.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(t, 4, Count(forest))
	assert.Equal(t, "bob", forest[0].Author.Username)
	assert.Contains(t, string(forest[0].ContentHTML), "<strong>great</strong>")
	require.Len(t, forest[0].Replies, 1)
	require.Len(t, forest[0].Replies[0].Replies, 1)
	assert.Equal(t, "np", forest[0].Replies[0].Replies[0].Content)
	assert.Empty(t, forest[1].Replies)
}

func TestCommentService_ListDropsOrphans(t *testing.T) {
	e := newTestEnv(t)
	ada := e.user(t, "ada")
	p := e.project(t, ada, "Compiler")

	missing := uint(999)
	now := time.Now()
	require.NoError(t, e.db.Create(&[]models.Comment{
		{ProjectID: p.ID, AuthorID: ada.ID, Content: "root", CreatedAt: now},
		{ProjectID: p.ID, AuthorID: ada.ID, Content: "orphan", ParentID: &missing, CreatedAt: now.Add(time.Second)},
	}).Error)

	forest, err := e.comments.List(t.Context(), p.ID)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "root", forest[0].Content)
}

func TestCommentService_ListUnknownProject(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.comments.List(t.Context(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentService_ListIsCachedUntilMutation(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	p := e.project(t, ada, "Compiler")

	forest, err := e.comments.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, forest)

	// rows written behind the service are not visible until invalidation
	require.NoError(t, e.db.Create(&models.Comment{ProjectID: p.ID, AuthorID: ada.ID, Content: "raw"}).Error)
	forest, err = e.comments.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, forest)

	_, err = e.comments.Create(ctx, ada, p.ID, "via service", nil)
	require.NoError(t, err)
	forest, err = e.comments.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, forest, 2)
}

func TestCommentService_CreateValidates(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	p := e.project(t, ada, "Compiler")
	other := e.project(t, ada, "Other")

	_, err := e.comments.Create(ctx, ada, p.ID, "   ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.comments.Create(ctx, ada, 999, "hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	foreign, err := e.comments.Create(ctx, ada, other.ID, "elsewhere", nil)
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, ada, p.ID, "reply", &foreign.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCommentService_CreateNotifies(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")
	p := e.project(t, ada, "Compiler")

	root, err := e.comments.Create(ctx, bob, p.ID, "question", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.notificationsOf(ada.ID)) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, models.NotificationCommentProject, e.notificationsOf(ada.ID)[0].Type)

	_, err = e.comments.Create(ctx, ada, p.ID, "answer", &root.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(e.notificationsOf(bob.ID)) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, models.NotificationReplyComment, e.notificationsOf(bob.ID)[0].Type)
}

func TestCommentService_DeleteKeepsReplies(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")
	p := e.project(t, ada, "Compiler")

	root, err := e.comments.Create(ctx, bob, p.ID, "question", nil)
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, ada, p.ID, "answer", &root.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, e.comments.Delete(ctx, ada, root.ID), ErrForbidden)
	require.NoError(t, e.comments.Delete(ctx, bob, root.ID))

	forest, err := e.comments.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, deletedCommentContent, forest[0].Content)
	assert.Len(t, forest[0].Replies, 1)
}
