package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"projectnest/internal/models"
	"projectnest/internal/services"
)

type ApplicationHandler struct {
	projects     *services.ProjectService
	applications *services.ApplicationService
}

func NewApplicationHandler(projects *services.ProjectService, applications *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{projects: projects, applications: applications}
}

type applyRequest struct {
	Message string `json:"message"`
}

func (h *ApplicationHandler) Apply(c *gin.Context) {
	var req applyRequest
	// the message is optional, an empty body is fine
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid application body")
			return
		}
	}
	ctx := c.Request.Context()
	project, err := h.projects.Lookup(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	app, err := h.applications.Apply(ctx, actor(c), project.ID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// ListForProject is the owner's review queue; ?status= narrows it.
func (h *ApplicationHandler) ListForProject(c *gin.Context) {
	status := models.ApplicationStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "unknown status "+string(status))
		return
	}
	ctx := c.Request.Context()
	project, err := h.projects.Lookup(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	apps, err := h.applications.ListForProject(ctx, actor(c), project.ID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (h *ApplicationHandler) Mine(c *gin.Context) {
	apps, err := h.applications.ListMine(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

type reviewRequest struct {
	Decision services.Decision `json:"decision" binding:"required"`
}

func (h *ApplicationHandler) Review(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "decision is required")
		return
	}
	app, err := h.applications.Review(c.Request.Context(), actor(c), id, req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.applications.Withdraw(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
