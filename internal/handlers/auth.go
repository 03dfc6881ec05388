package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"projectnest/internal/middleware"
	"projectnest/internal/models"
	"projectnest/internal/services"
)

const captchaSessionKey = "captcha_answer"

type AuthHandler struct {
	auth    *services.AuthService
	captcha *services.CaptchaService
	github  *oauth2.Config
	// githubAPI is the GitHub REST base URL, overridable in tests.
	githubAPI string
	siteURL   string
}

func NewAuthHandler(auth *services.AuthService, captcha *services.CaptchaService, github *oauth2.Config, siteURL string) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		captcha:   captcha,
		github:    github,
		githubAPI: "https://api.github.com",
		siteURL:   siteURL,
	}
}

// self is the account view shown to its owner, email included.
func self(user *models.User) gin.H {
	return gin.H{"user": user, "email": user.Email}
}

func login(c *gin.Context, userID uint) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, userID)
	session.Save()
}

// Captcha issues a new question and keeps its answer in the session.
func (h *AuthHandler) Captcha(c *gin.Context) {
	question, answer := h.captcha.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	session.Save()
	c.JSON(http.StatusOK, gin.H{"captcha": question})
}

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Captcha  string `json:"captcha" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email, username, password and captcha are required")
		return
	}

	session := sessions.Default(c)
	expected := session.Get(captchaSessionKey)
	// one attempt per question
	session.Delete(captchaSessionKey)
	session.Save()
	if !services.CheckAnswer(req.Captcha, expected) {
		badRequest(c, "wrong captcha answer")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	login(c, user.ID)
	c.JSON(http.StatusCreated, self(user))
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "login and password are required")
		return
	}
	user, err := h.auth.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	login(c, user.ID)
	c.JSON(http.StatusOK, self(user))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.JSON(http.StatusOK, self(user))
}
