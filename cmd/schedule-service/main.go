package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stillpoint-yoga/studio/config"
	"github.com/stillpoint-yoga/studio/internal/auth"
	"github.com/stillpoint-yoga/studio/internal/handler"
	"github.com/stillpoint-yoga/studio/internal/media"
	"github.com/stillpoint-yoga/studio/internal/middleware"
	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/repository"
	"github.com/stillpoint-yoga/studio/internal/service"
	"github.com/stillpoint-yoga/studio/pkg/database"
	"github.com/stillpoint-yoga/studio/pkg/rabbitmq"
)

func main() {
	cfg := config.Load("schedule-service", "8081")
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.NewPostgresDB(cfg.DSN(), &models.ClassSchedule{})

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.ServiceName)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	mediaCfg, err := media.LoadConfig(cfg.MediaConfig)
	if err != nil {
		log.Fatalf("failed to load media regions: %v", err)
	}
	images, err := media.NewResolver(mediaCfg)
	if err != nil {
		log.Fatalf("invalid media regions: %v", err)
	}

	repo := repository.NewClassRepository(db)
	svc := service.NewScheduleService(repo, publisher)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Validator = middleware.NewRequestValidator()
	e.Use(echoMw.RequestIDWithConfig(echoMw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d rid=%s", v.Method, v.URI, v.Status, v.RequestID)
			return nil
		},
	}))
	e.Use(echoMw.Recover())
	e.Use(middleware.Metrics())

	e.GET("/health", func(c echo.Context) error {
		if !database.Ping(db) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "service": cfg.ServiceName})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": cfg.ServiceName})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// reads are public; a bearer token is parsed when present
	api := e.Group("/api/v1/classes", middleware.OptionalJWT(cfg.JWTSigningKey, cfg.JWTIssuer))
	handler.NewScheduleHandler(svc, images).RegisterRoutes(api, middleware.RequireRole(auth.RoleAdmin))

	go func() {
		log.Printf("Schedule Service starting on :%s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Schedule Service shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
