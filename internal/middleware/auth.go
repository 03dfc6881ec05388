package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"projectnest/internal/models"
	"projectnest/internal/services"
)

const (
	CheckUserKey   = "user"
	SessionUserKey = "user_id"
)

// UserLoader resolves the user stored in the session.
type UserLoader interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

// LoadUser retrieves the session user and sets it on the context. A stale
// session (user gone) is cleared; a failed lookup keeps the session and
// answers 503.
func LoadUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID, ok := session.Get(SessionUserKey).(uint); ok {
			user, err := users.UserByID(c.Request.Context(), userID)
			switch {
			case err == nil:
				c.Set(CheckUserKey, user)
			case errors.Is(err, services.ErrNotFound):
				session.Delete(SessionUserKey)
				session.Save()
			default:
				c.Error(err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
				return
			}
		}
		c.Next()
	}
}

// AuthRequired rejects requests without a logged in user.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
