package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/aaronwang/auction-ledger/internal/bank"
	"github.com/aaronwang/auction-ledger/internal/config"
	"github.com/aaronwang/auction-ledger/internal/events"
	"github.com/aaronwang/auction-ledger/internal/handlers"
	"github.com/aaronwang/auction-ledger/internal/ledger"
	"github.com/aaronwang/auction-ledger/internal/observability"
	"github.com/aaronwang/auction-ledger/internal/service"
	"github.com/aaronwang/auction-ledger/internal/voting"
)

func main() {
	logger := observability.InitLogger("gateway")
	cfg := loadConfig()

	logger.Info().Str("addr", cfg.RedisAddr).Msg("connecting to Redis")
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	cancelPing()
	defer redisClient.Close()

	logger.Info().Str("url", cfg.NatsURL).Msg("connecting to NATS")
	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer natsConn.Close()

	publisher, err := events.NewFanout(redisClient, natsConn, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up event publisher")
	}

	// The gateway is the host of the ledger state machine: the bank is
	// its value-transfer primitive and the fan is its notification sink.
	accounts := bank.New()
	fan := service.NewFan(publisher, logger)
	auctionLedger := ledger.New(accounts.Credit, ledger.WithSink(fan))
	votingRegistry := voting.New(voting.WithSink(fan))

	svc := service.New(auctionLedger, votingRegistry, accounts, logger)
	handler := handlers.NewHandler(svc, logger)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
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
	NatsURL       string
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8080"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
		NatsURL:       config.GetEnv("NATS_URL", "nats://localhost:4222"),
	}
}
