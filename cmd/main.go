/**
 * @description
 * Entry point for the worker payment tracking service. It loads the
 * configuration, connects the optional RabbitMQ publisher and Redis login
 * limiter, wires the in-memory store into the application service and
 * serves the HTTP API.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Poorujeet01/BCCL-PROJECT/internal/api"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/app"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/config"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/store"
	wptsmiddleware "github.com/Poorujeet01/BCCL-PROJECT/pkg/middleware"
	wptsrabbit "github.com/Poorujeet01/BCCL-PROJECT/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var publisher wptsrabbit.Publisher = &wptsrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := wptsrabbit.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			logger.Info("rabbitmq connected", "exchange", cfg.EventsExchange)
		} else {
			logger.Warn("failed to connect to RabbitMQ, using fallback publisher", "error", err)
		}
	} else {
		logger.Warn("rabbitmq url missing; events will only be logged", "env", "RABBITMQ_URL")
	}
	defer publisher.Close()

	var limiter app.LoginRateLimiter
	if redisClient := connectRedis(logger, cfg); redisClient != nil {
		defer redisClient.Close()
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	repository := store.NewRepository()
	service := app.NewService(repository, publisher, limiter, app.Options{
		ServiceName:             cfg.ServiceName,
		EventsExchange:          cfg.EventsExchange,
		LoginRateLimitPerMinute: cfg.LoginRateLimitPerMinute,
	})
	var apiLimiter *wptsmiddleware.RateLimiter
	if cfg.APIRateLimitPerMinute > 0 {
		apiLimiter = wptsmiddleware.NewPerMinuteRateLimiter(cfg.APIRateLimitPerMinute)
		defer apiLimiter.Stop()
	}

	handler := api.NewHandler(service)
	router := api.NewRouter(handler, api.RouterOptions{
		StaticDir:      cfg.StaticDir,
		RequestTimeout: cfg.RequestTimeout(),
		APIRateLimiter: apiLimiter,
	})
	logRoutes(logger, router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "service", cfg.ServiceName, "port", cfg.ServerPort, "static_dir", cfg.StaticDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

// connectRedis returns a ready client, or nil when login rate limiting is
// disabled or Redis cannot be reached.
func connectRedis(logger *slog.Logger, cfg config.Config) *redis.Client {
	if cfg.LoginRateLimitPerMinute <= 0 {
		logger.Info("login rate limiting disabled by configuration")
		return nil
	}
	if cfg.RedisURL == "" {
		logger.Warn("redis url missing; login rate limiting disabled", "env", "REDIS_URL")
		return nil
	}

	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis url parse failed; login rate limiting disabled", "error", err)
		return nil
	}

	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; login rate limiting disabled", "error", err)
		client.Close()
		return nil
	}

	logger.Info("redis connected", "prefix", cfg.RedisRateLimitPrefix)
	return client
}

func logRoutes(logger *slog.Logger, router chi.Routes) {
	err := chi.Walk(router, func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		logger.Info("route registered", "method", method, "path", route)
		return nil
	})
	if err != nil {
		logger.Warn("failed to list routes", "error", err)
	}
}
