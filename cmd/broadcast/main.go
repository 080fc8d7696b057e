package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaronwang/auction-ledger/internal/broadcast"
	"github.com/aaronwang/auction-ledger/internal/config"
	"github.com/aaronwang/auction-ledger/internal/observability"
	"github.com/aaronwang/auction-ledger/internal/websocket"
)

func main() {
	logger := observability.InitLogger("broadcast")
	cfg := loadConfig()

	logger.Info().Str("addr", cfg.RedisAddr).Msg("connecting to Redis")
	subscriber, err := broadcast.NewSubscriber(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer subscriber.Close()

	ctx := context.Background()
	if err := subscriber.SubscribeAll(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to event channels")
	}

	wsManager := websocket.NewManager(logger)
	go wsManager.Run()

	messages := make(chan *broadcast.Message, 256)

	go func() {
		logger.Info().Msg("listening for Redis Pub/Sub messages")
		if err := subscriber.Listen(ctx, messages); err != nil {
			logger.Error().Err(err).Msg("redis listener stopped")
		}
	}()

	// Redis Pub/Sub -> WebSocket forwarder.
	go func() {
		for msg := range messages {
			wsManager.Broadcast(msg.Key, []byte(msg.Payload))
		}
	}()

	handler := websocket.NewHandler(wsManager, logger)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("broadcast service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped gracefully")
}

// Config holds application configuration.
type Config struct {
	ServerAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8081"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
	}
}
