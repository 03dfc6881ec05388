package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"projectnest/internal/services"
)

type BookmarkHandler struct {
	projects  *services.ProjectService
	bookmarks *services.BookmarkService
}

func NewBookmarkHandler(projects *services.ProjectService, bookmarks *services.BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{projects: projects, bookmarks: bookmarks}
}

// Toggle bookmarks or un-bookmarks a project.
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := h.projects.Lookup(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	bookmarked, err := h.bookmarks.Toggle(ctx, actor(c), project.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": bookmarked})
}

func (h *BookmarkHandler) Mine(c *gin.Context) {
	bookmarks, err := h.bookmarks.ListMine(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookmarks)
}
