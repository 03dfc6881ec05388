package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"projectnest/internal/services"
)

type UserHandler struct {
	profiles *services.ProfileService
	maxBytes int64
}

func NewUserHandler(profiles *services.ProfileService, maxAvatarBytes int64) *UserHandler {
	return &UserHandler{profiles: profiles, maxBytes: maxAvatarBytes}
}

// Profile is the public page of a user with the projects they own.
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var in services.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid profile body")
		return
	}
	user, err := h.profiles.Update(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, self(user))
}

// UploadAvatar takes a multipart "avatar" image field.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	// leave room for the multipart envelope
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+64<<10)

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		badRequest(c, "an image in the avatar field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		badRequest(c, fmt.Sprintf("image exceeds %d bytes", h.maxBytes))
		return
	}
	image, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		badRequest(c, "could not read image")
		return
	}

	user, err := h.profiles.SetAvatar(c.Request.Context(), actor(c), image, header.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, self(user))
}
