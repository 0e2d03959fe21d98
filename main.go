package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DashNode-Org/teranode-monitor/config"
	"github.com/DashNode-Org/teranode-monitor/pkg/health"
	"github.com/DashNode-Org/teranode-monitor/pkg/rpc"
	"github.com/DashNode-Org/teranode-monitor/pkg/server"
	"github.com/DashNode-Org/teranode-monitor/pkg/status"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	cache := status.NewCache(cfg.TargetHeight)
	client := rpc.NewClient(cfg.RPCURL(), rpc.Credentials{
		User:     cfg.RPCUser,
		Password: cfg.RPCPassword,
	}, cfg.RequestTimeout).WithMaxPeers(cfg.MaxPeers)

	stream := server.NewStream(cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := health.NewChecker(cfg, client, cache)
	checker.OnPublish(stream.Publish)
	checker.Start(ctx)

	log.Info().
		Str("node", cfg.RPCURL()).
		Dur("interval", cfg.RefreshInterval).
		Dur("timeout", cfg.RequestTimeout).
		Int64("targetHeight", cfg.TargetHeight).
		Msg("Refresh loop started")

	srv := server.NewServer(cfg, cache, stream)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// an in-flight poll is abandoned; the cache keeps its last published snapshot
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
