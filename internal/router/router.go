package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"projectnest/internal/handlers"
	"projectnest/internal/middleware"
	"projectnest/internal/services"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Auth          *services.AuthService
	Captcha       *services.CaptchaService
	Projects      *services.ProjectService
	Comments      *services.CommentService
	Applications  *services.ApplicationService
	Messages      *services.MessageService
	Profiles      *services.ProfileService
	Notifications *services.NotificationService
	Bookmarks     *services.BookmarkService
	Broker        *services.Broker
	Presence      *services.Presence
	GitHub        *oauth2.Config // nil disables GitHub sign-in
	SiteURL       string
	MaxAvatarSize int64
}

// RegisterRoutes mounts the JSON API. The engine must already carry the
// session middleware.
func RegisterRoutes(r *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth, d.Captcha, d.GitHub, d.SiteURL)
	projectHandler := handlers.NewProjectHandler(d.Projects, d.Applications, d.Bookmarks)
	commentHandler := handlers.NewCommentHandler(d.Projects, d.Comments)
	applicationHandler := handlers.NewApplicationHandler(d.Projects, d.Applications)
	messageHandler := handlers.NewMessageHandler(d.Messages, d.Presence)
	realtimeHandler := handlers.NewRealtimeHandler(d.Broker, d.Presence)
	userHandler := handlers.NewUserHandler(d.Profiles, d.MaxAvatarSize)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	bookmarkHandler := handlers.NewBookmarkHandler(d.Projects, d.Bookmarks)
	seoHandler := handlers.NewSEOHandler(d.Projects, d.SiteURL)

	r.Use(middleware.LoadUser(d.Auth))

	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)
	r.GET("/feed.xml", seoHandler.RSSFeed)

	// GitHub OAuth
	r.GET("/auth/github/login", authHandler.GitHubLogin)
	r.GET("/auth/github/callback", authHandler.GitHubCallback)

	api := r.Group("/api")

	// Public Routes
	api.GET("/categories", projectHandler.Categories)
	api.GET("/projects", projectHandler.Browse)
	api.GET("/projects/:slug", projectHandler.Detail)
	api.GET("/projects/:slug/comments", commentHandler.List)
	api.GET("/projects/:slug/members", projectHandler.Members)
	api.GET("/users/:username", userHandler.Profile)

	api.GET("/auth/captcha", authHandler.Captcha)
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.Me)

	// Protected Routes
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/projects", projectHandler.Create)
		authorized.PUT("/projects/:slug", projectHandler.Update)
		authorized.DELETE("/projects/:slug", projectHandler.Delete)
		authorized.DELETE("/projects/:slug/membership", projectHandler.Leave)
		authorized.POST("/projects/:slug/bookmark", bookmarkHandler.Toggle)

		authorized.POST("/projects/:slug/comments", commentHandler.Create)
		authorized.DELETE("/comments/:id", commentHandler.Delete)

		authorized.POST("/projects/:slug/applications", applicationHandler.Apply)
		authorized.GET("/projects/:slug/applications", applicationHandler.ListForProject)
		authorized.POST("/applications/:id/review", applicationHandler.Review)
		authorized.POST("/applications/:id/withdraw", applicationHandler.Withdraw)

		authorized.GET("/conversations", messageHandler.ListConversations)
		authorized.POST("/conversations", messageHandler.Start)
		authorized.GET("/conversations/:id/messages", messageHandler.ListMessages)
		authorized.POST("/conversations/:id/messages", messageHandler.Send)
		authorized.POST("/conversations/:id/read", messageHandler.MarkRead)

		authorized.GET("/realtime", realtimeHandler.Stream)
		authorized.GET("/presence", realtimeHandler.Presence)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)

		authorized.PUT("/me", userHandler.UpdateMe)
		authorized.POST("/me/avatar", userHandler.UploadAvatar)
		authorized.GET("/me/applications", applicationHandler.Mine)
		authorized.GET("/me/bookmarks", bookmarkHandler.Mine)
	}
}
