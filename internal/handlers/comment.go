package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"projectnest/internal/services"
)

type CommentHandler struct {
	projects *services.ProjectService
	comments *services.CommentService
}

func NewCommentHandler(projects *services.ProjectService, comments *services.CommentService) *CommentHandler {
	return &CommentHandler{projects: projects, comments: comments}
}

// List returns the project's comments as threads.
func (h *CommentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := h.projects.Lookup(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	threads, err := h.comments.List(ctx, project.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads, "count": services.Count(threads)})
}

type commentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid comment body")
		return
	}
	ctx := c.Request.Context()
	project, err := h.projects.Lookup(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	comment, err := h.comments.Create(ctx, actor(c), project.ID, req.Content, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
