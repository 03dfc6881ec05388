package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectnest/internal/config"
	"projectnest/internal/db"
	"projectnest/internal/handlers"
	"projectnest/internal/logging"
	"projectnest/internal/middleware"
	"projectnest/internal/router"
	"projectnest/internal/services"
	"projectnest/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	gdb, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb, log); err != nil {
		return err
	}

	policy, err := services.ParseOrphanPolicy(cfg.Comments.OrphanPolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := utils.NewQueryCache(cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		return err
	}
	broker := services.NewBroker(log.Named("realtime"), 64)
	presence := services.NewPresence(broker)
	notifications := services.NewNotificationService(gdb, broker, log.Named("notifications"))
	popularity := services.NewPopularityService(gdb, cache, log.Named("popularity"), cfg.PopularityInterval)
	mailer := services.NewMailService(cfg.Mail, log.Named("mail"))

	deps := router.Deps{
		Auth:          services.NewAuthService(gdb, log.Named("auth")),
		Captcha:       services.NewCaptchaService(),
		Projects:      services.NewProjectService(gdb, cache, popularity, log.Named("projects")),
		Comments:      services.NewCommentService(gdb, cache, notifications, popularity, policy, log.Named("comments")),
		Applications:  services.NewApplicationService(gdb, cache, notifications, popularity, mailer, cfg.SiteURL, log.Named("applications")),
		Messages:      services.NewMessageService(gdb, cache, broker, presence, notifications, log.Named("messages")),
		Profiles:      services.NewProfileService(gdb, cache, services.NewImgurStore(cfg.Avatar), cfg.Avatar.MaxBytes, log.Named("profiles")),
		Notifications: notifications,
		Bookmarks:     services.NewBookmarkService(gdb, popularity, log.Named("bookmarks")),
		Broker:        broker,
		Presence:      presence,
		GitHub:        handlers.NewGitHubOAuthConfig(cfg.GitHub, cfg.SiteURL),
		SiteURL:       cfg.SiteURL,
		MaxAvatarSize: cfg.Avatar.MaxBytes,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		popularity.Run(workerCtx)
		close(workersDone)
	}()

	gin.SetMode(cfg.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(log.Named("http")), gin.Recovery())
	r.Use(sessions.Sessions("projectnest_session", cookie.NewStore([]byte(cfg.SessionSecret))))
	router.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// realtime streams end when the process is asked to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ProjectNest server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			cancelWorkers()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	cancelWorkers()
	<-workersDone

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}
