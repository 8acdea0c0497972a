package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"webhook-gatekeeper/internal/common/logging"
	"webhook-gatekeeper/internal/config"
	"webhook-gatekeeper/internal/handlers"
	"webhook-gatekeeper/internal/metrics"
	"webhook-gatekeeper/internal/middleware"
	"webhook-gatekeeper/internal/redis"
	"webhook-gatekeeper/internal/server"
	"webhook-gatekeeper/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", err)
		os.Exit(1)
	}

	// Shared replay/rate-limit state is optional; without Redis each
	// instance keeps its own in-process windows.
	var store webhook.Store
	if cfg.RedisAddress != "" {
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       atoi(cfg.RedisDB),
			PoolSize: atoi(cfg.RedisPoolSize),
		})
		if err != nil {
			logger.Error("Failed to connect to Redis", err)
			os.Exit(1)
		}
		defer client.Close()
		store = client
		logger.Info("Using Redis-backed replay and rate-limit state",
			logging.String("address", cfg.RedisAddress),
		)
	}

	registry, err := webhook.NewRegistry(cfg.Providers(), store, logger)
	if err != nil {
		logger.Error("Failed to build provider validators", err)
		os.Exit(1)
	}
	logger.Info("Providers configured", logging.Field{Key: "providers", Value: registry.Providers()})

	m := metrics.New()
	h := handlers.New(registry, m, logger)
	flood := middleware.NewFloodGuard(cfg.IngressRPS, cfg.IngressBurst)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Handle("/webhook/{provider}", flood.Middleware(http.HandlerFunc(h.HandleWebhook))).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	srv := server.New(router, cfg.Port)
	srv.Start(func(err error) {
		logger.Error("Server failed", err)
		os.Exit(1)
	})
	logger.Info("Server started", logging.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", err)
	}
}

// atoi is for config fields already validated as numeric.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
