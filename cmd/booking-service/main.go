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
	"github.com/stillpoint-yoga/studio/internal/cache"
	"github.com/stillpoint-yoga/studio/internal/consumer"
	"github.com/stillpoint-yoga/studio/internal/handler"
	"github.com/stillpoint-yoga/studio/internal/middleware"
	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/repository"
	"github.com/stillpoint-yoga/studio/internal/service"
	"github.com/stillpoint-yoga/studio/pkg/database"
	"github.com/stillpoint-yoga/studio/pkg/rabbitmq"
)

func main() {
	cfg := config.Load("booking-service", "8082")
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.NewPostgresDB(cfg.DSN(), &models.ClassSchedule{}, &models.Booking{})
	if err := database.EnsureBookingIndexes(db); err != nil {
		log.Fatalf("failed to create booking indexes: %v", err)
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.ServiceName)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	// Class replica sync from the schedule service
	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.ServiceName+".classes", "class.*")
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqConsumer.Close()

	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	classRepo := repository.NewClassRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	redisClient := cache.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()
	occupancy := cache.NewOccupancyCache(redisClient, cfg.StatusCacheTTL)

	consumer.NewClassConsumer(classRepo, occupancy).Start(ctx, msgs)

	bookingSvc := service.NewBookingService(bookingRepo, classRepo, publisher, occupancy)

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
		status := map[string]string{"status": "ok", "service": cfg.ServiceName, "database": "up", "cache": "up"}
		code := http.StatusOK
		if !database.Ping(db) {
			status["status"], status["database"] = "degraded", "down"
			code = http.StatusServiceUnavailable
		}
		// the cache is optional; bookings still work without it
		if !occupancy.Healthy(c.Request().Context()) {
			status["cache"] = "down"
		}
		return c.JSON(code, status)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", middleware.JWTAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	handler.NewBookingHandler(bookingSvc).RegisterRoutes(api)

	go func() {
		log.Printf("Booking Service starting on :%s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Booking Service shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
