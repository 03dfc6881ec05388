package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"projectnest/internal/middleware"
	"projectnest/internal/models"
	"projectnest/internal/services"
	"projectnest/internal/utils"
)

type ProjectHandler struct {
	projects     *services.ProjectService
	applications *services.ApplicationService
	bookmarks    *services.BookmarkService
}

func NewProjectHandler(projects *services.ProjectService, applications *services.ApplicationService, bookmarks *services.BookmarkService) *ProjectHandler {
	return &ProjectHandler{projects: projects, applications: applications, bookmarks: bookmarks}
}

func (h *ProjectHandler) Categories(c *gin.Context) {
	categories, err := h.projects.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// splitList accepts both repeated and comma separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Browse lists projects: /api/projects?q=&category=&tags=go,rust&status=open&owner=&member=&sort=popular&page=2&per_page=20
func (h *ProjectHandler) Browse(c *gin.Context) {
	filter := services.ProjectFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Tags:     splitList(c.QueryArray("tags")),
		Sort:     c.Query("sort"),
		Page:     utils.StringToInt(c.Query("page")),
		PerPage:  utils.StringToInt(c.Query("per_page")),
	}
	for _, s := range splitList(c.QueryArray("status")) {
		status := models.ProjectStatus(s)
		if !status.Valid() {
			badRequest(c, "unknown status "+s)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if v := c.Query("owner"); v != "" {
		id, ok := utils.ParseID(v)
		if !ok {
			badRequest(c, "invalid owner")
			return
		}
		filter.OwnerID = id
	}
	if v := c.Query("member"); v != "" {
		id, ok := utils.ParseID(v)
		if !ok {
			badRequest(c, "invalid member")
			return
		}
		filter.MemberID = id
	}

	page, err := h.projects.Browse(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ProjectHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := h.projects.Get(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	bookmarked := false
	if user, ok := middleware.CurrentUser(c); ok {
		if bookmarked, err = h.bookmarks.IsBookmarked(ctx, user.ID, project.ID); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"project":          project,
		"description_html": utils.RenderMarkdown(project.Description),
		"bookmarked":       bookmarked,
	})
}

type projectRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Tags        []string             `json:"tags"`
	MaxMembers  int                  `json:"max_members"`
	Status      models.ProjectStatus `json:"status"`
}

func (r projectRequest) input() services.ProjectInput {
	return services.ProjectInput{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Tags:        r.Tags,
		MaxMembers:  r.MaxMembers,
		Status:      r.Status,
	}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid project body")
		return
	}
	project, err := h.projects.Create(c.Request.Context(), actor(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid project body")
		return
	}
	project, err := h.projects.Update(c.Request.Context(), actor(c), c.Param("slug"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), actor(c), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) Members(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := h.projects.Lookup(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	members, err := h.applications.Members(ctx, project.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *ProjectHandler) Leave(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := h.projects.Lookup(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.applications.Leave(ctx, actor(c), project.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
