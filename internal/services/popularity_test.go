package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectnest/internal/models"
)

func popularityOf(t *testing.T, e *testEnv, id uint) int {
	t.Helper()
	var p models.Project
	require.NoError(t, e.db.Select("popularity").First(&p, id).Error)
	return p.Popularity
}

func TestPopularityService_RecomputeRanksActivity(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")
	quiet := e.project(t, ada, "Quiet")
	busy := e.project(t, ada, "Busy")

	_, err := e.applications.Apply(ctx, bob, busy.ID, "")
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, bob, busy.ID, "nice", nil)
	require.NoError(t, err)
	_, err = e.bookmarks.Toggle(ctx, bob, busy.ID)
	require.NoError(t, err)

	require.NoError(t, e.popularity.Recompute(ctx, quiet.ID))
	require.NoError(t, e.popularity.Recompute(ctx, busy.ID))

	assert.Greater(t, popularityOf(t, e, busy.ID), popularityOf(t, e, quiet.ID))
	assert.Error(t, e.popularity.Recompute(ctx, 999))
}

func TestPopularityService_RecomputeKeepsScoreWhenCountsFail(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()
	p := e.project(t, e.user(t, "ada"), "Garden")
	require.NoError(t, e.db.Model(&models.Project{}).Where("id = ?", p.ID).UpdateColumn("popularity", 42).Error)

	require.NoError(t, e.db.Migrator().DropTable(&models.Bookmark{}))

	assert.Error(t, e.popularity.Recompute(ctx, p.ID))
	assert.Equal(t, 42, popularityOf(t, e, p.ID))
}

func TestPopularityService_RunDrainsQueue(t *testing.T) {
	e := newTestEnv(t)
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")
	p := e.project(t, ada, "Compiler")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		e.popularity.Run(ctx)
		close(done)
	}()

	// warm the browse cache; the worker must invalidate it
	_, err := e.projects.Browse(t.Context(), ProjectFilter{Sort: SortPopular})
	require.NoError(t, err)

	_, err = e.bookmarks.Toggle(t.Context(), bob, p.ID)
	require.NoError(t, err)
	e.popularity.Schedule(p.ID)

	require.Eventually(t, func() bool { return popularityOf(t, e, p.ID) > 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		page, err := e.projects.Browse(t.Context(), ProjectFilter{Sort: SortPopular})
		return err == nil && len(page.Items) == 1 && page.Items[0].Popularity > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPopularityService_ScheduleDeduplicates(t *testing.T) {
	e := newTestEnv(t)
	for range 3 {
		e.popularity.Schedule(7)
	}
	assert.Len(t, e.popularity.queue, 1)
}
