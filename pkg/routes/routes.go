package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"NoticeBoard/internal/analytics"
	"NoticeBoard/internal/apperror"
	"NoticeBoard/internal/config"
	"NoticeBoard/internal/notice"
	"NoticeBoard/internal/notification"
	"NoticeBoard/internal/user"
	"NoticeBoard/pkg/middleware"
)

var Modules = fx.Module("noticeboard",
	fx.Provide(
		config.NewLogger,
		config.NewMongoDBConfig,
		config.NewMongoDBClient,
		config.NewSMTPConfig,
		config.NewEmailService,
		config.NewUploadConfig,
		user.NewRepository,
		user.NewService,
		user.NewHandler,
		notice.NewRepository,
		notice.NewService,
		notice.NewHandler,
		notice.NewScheduler,
		notification.NewHub,
		notification.NewFanout,
		func(f *notification.Fanout) notice.Notifier { return f },
		analytics.NewService,
		analytics.NewHandler,
		NewEchoServer,
	),
	fx.Invoke(SetupDatabase),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(StartScheduler),
)

func NewEchoServer(lc fx.Lifecycle, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = newHTTPErrorHandler(log)

	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{origin},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("HTTP server starting", zap.String("addr", addr))
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("Failed to start the server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down the server ...")
			return e.Shutdown(ctx)
		},
	})
	return e
}

// SetupDatabase creates the collection indexes and seeds the initial admin
// account before the server starts taking requests.
func SetupDatabase(users *user.Repository, notices *notice.Repository, userService *user.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := notices.EnsureIndexes(ctx); err != nil {
		return err
	}
	return userService.SeedAdmin(ctx)
}

func StartScheduler(s *notice.Scheduler, lc fx.Lifecycle) {
	s.Start(lc)
}

func RegisterRoutes(
	e *echo.Echo,
	uploads *config.UploadConfig,
	userHandler *user.Handler,
	noticeHandler *notice.Handler,
	analyticsHandler *analytics.Handler,
	hub *notification.Hub,
) {
	e.POST("/api/auth/login", userHandler.Login)
	e.GET("/ws", hub.ServeWS)
	e.Static("/uploads", uploads.Dir)

	api := e.Group("/api", middleware.JWTMiddleware, middleware.CasbinMiddleware)

	api.GET("/notices", noticeHandler.List)
	api.POST("/notices", noticeHandler.Create)
	api.GET("/notices/:id", noticeHandler.GetByID)
	api.PUT("/notices/:id", noticeHandler.Update)
	api.DELETE("/notices/:id", noticeHandler.Delete)
	api.PATCH("/notices/:id/archive", noticeHandler.Archive)
	api.POST("/notices/:id/comment", noticeHandler.AddComment)
	api.POST("/notices/:id/acknowledge", noticeHandler.Acknowledge)

	api.GET("/analytics", analyticsHandler.GetAnalytics)

	api.GET("/users", userHandler.ListUsers)
	api.GET("/users/:id", userHandler.GetUser)
	api.PUT("/users/:id", userHandler.UpdateUser)
	api.DELETE("/users/:id", userHandler.DeleteUser)
}

// newHTTPErrorHandler is the single boundary where failures become HTTP
// responses: classified errors map to their status, everything else is a
// 500 whose detail is logged but not echoed to the client.
func newHTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			_ = c.JSON(httpErr.Code, map[string]string{"error": fmt.Sprintf("%v", httpErr.Message)})
			return
		}
		status := apperror.Status(err)
		if status == http.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		_ = c.JSON(status, map[string]string{"error": apperror.ClientMessage(err)})
	}
}
