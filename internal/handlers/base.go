package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"projectnest/internal/middleware"
	"projectnest/internal/models"
	"projectnest/internal/services"
	"projectnest/internal/utils"
)

// statusOf maps a service error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrProjectClosed),
		errors.Is(err, services.ErrProjectFull):
		return http.StatusConflict
	case errors.Is(err, services.ErrOrphanedReply),
		errors.Is(err, services.ErrMalformedComment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...} for err. Internal errors are recorded
// on the context for the request logger and never shown to the client.
func respondError(c *gin.Context, err error) {
	c.Error(err)
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// paramID parses a numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		badRequest(c, "invalid "+name)
	}
	return id, ok
}

// actor returns the logged in user. Routes using it sit behind AuthRequired.
func actor(c *gin.Context) *models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}
