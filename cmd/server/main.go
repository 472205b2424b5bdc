package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/sumire/taskboard/internal/config"
	"github.com/sumire/taskboard/internal/deadline"
	"github.com/sumire/taskboard/internal/handler"
	"github.com/sumire/taskboard/internal/realtime"
	"github.com/sumire/taskboard/internal/repository"
	"github.com/sumire/taskboard/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := runMigrations(cfg); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	window := deadline.NewWindow(loc)

	log := slog.Default()
	hub := realtime.NewHub(log)

	userRepo := repository.NewUserRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	cardRepo := repository.NewCardRepository(db)
	memberRepo := repository.NewMembershipRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret)
	notifySvc := service.NewNotificationService(notificationRepo, cardRepo, boardRepo, userRepo, hub, window)
	membershipSvc := service.NewMembershipService(memberRepo, invitationRepo, cardRepo, notifySvc)
	boardSvc := service.NewBoardService(boardRepo, cardRepo, commentRepo, invitationRepo, memberRepo, membershipSvc, notifySvc)
	cardSvc := service.NewCardService(cardRepo, boardRepo, commentRepo, membershipSvc, notifySvc)
	commentSvc := service.NewCommentService(commentRepo, cardRepo, membershipSvc, notifySvc)
	inboxSvc := service.NewInboxService(notificationRepo)

	scheduler := deadline.NewScheduler(notificationRepo, hub, window, cfg.SweepCron, log)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start deadline scheduler: %w", err)
	}
	defer scheduler.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	boardHandler := handler.NewBoardHandler(boardSvc)
	cardHandler := handler.NewCardHandler(cardSvc)
	membershipHandler := handler.NewMembershipHandler(membershipSvc)
	commentHandler := handler.NewCommentHandler(commentSvc)
	notificationHandler := handler.NewNotificationHandler(inboxSvc)
	wsHandler := handler.NewWSHandler(hub, log)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Validator = handler.NewAppValidator()

	e.Use(echomw.RequestID())
	e.Use(handler.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", func(c echo.Context) error {
		return handler.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	protected := api.Group("", handler.JWTAuth(authSvc))
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/ws", wsHandler.Connect)

	protected.POST("/boards", boardHandler.Create)
	protected.GET("/boards", boardHandler.List)
	protected.GET("/boards/:id", boardHandler.Get)
	protected.PATCH("/boards/:id", boardHandler.Update)
	protected.DELETE("/boards/:id", boardHandler.Delete)
	protected.GET("/boards/:id/columns", boardHandler.Columns)
	protected.POST("/boards/:id/columns", boardHandler.CreateColumn)
	protected.GET("/boards/:id/cards", cardHandler.ListByBoard)

	protected.GET("/boards/:id/members", membershipHandler.List)
	protected.POST("/boards/:id/members/invite", membershipHandler.Invite)
	protected.DELETE("/boards/:id/members/:userId", membershipHandler.Remove)
	protected.PATCH("/boards/:id/members/:userId/role", membershipHandler.ChangeRole)
	protected.POST("/boards/:id/invite-link", membershipHandler.GenerateLink)
	protected.DELETE("/boards/:id/invite-link/:token", membershipHandler.RevokeLink)
	protected.POST("/invitations/:id/respond", membershipHandler.Respond)
	protected.POST("/invite-link/:token/join", membershipHandler.JoinViaLink)

	protected.POST("/cards", cardHandler.Create)
	protected.GET("/cards/:id", cardHandler.Get)
	protected.PATCH("/cards/:id", cardHandler.Update)
	protected.DELETE("/cards/:id", cardHandler.Delete)
	protected.POST("/cards/:id/members", cardHandler.Assign)
	protected.DELETE("/cards/:id/members/:userId", cardHandler.Unassign)
	protected.POST("/cards/:cardId/move", boardHandler.MoveCard)
	protected.GET("/cards/:id/comments", commentHandler.ListByCard)
	protected.POST("/cards/:id/comments", commentHandler.Create)

	protected.GET("/notifications", notificationHandler.List)
	protected.PATCH("/notifications/read-all", notificationHandler.MarkAllRead)
	protected.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
	protected.DELETE("/notifications", notificationHandler.Clear)
	protected.DELETE("/notifications/:id", notificationHandler.Delete)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     e,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func runMigrations(cfg config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
