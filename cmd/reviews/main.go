package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/ImGenos/Dm-Placards/internal/core/config"
	"github.com/ImGenos/Dm-Placards/internal/infra/cache"
	"github.com/ImGenos/Dm-Placards/internal/infra/network"
	"github.com/ImGenos/Dm-Placards/internal/infra/places"
	"github.com/ImGenos/Dm-Placards/internal/reviews"
	"github.com/ImGenos/Dm-Placards/internal/server"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; environment variables may come from anywhere.
	_ = godotenv.Load()

	// Load configuration first (before setting up logger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})))
	slog.Info("Logger initialized", "level", slogLevel.String())

	// Cache backend
	var kv cache.KV
	switch cfg.Cache.Backend {
	case "redis":
		redisKV, err := cache.NewRedisKV(cfg.Cache.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisKV.Close()
		kv = redisKV
	default:
		kv = cache.NewMemoryKV()
	}
	store := cache.NewStore(kv,
		cache.WithTTL(cfg.Cache.TTLDuration()),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
	)

	// Upstream client and connectivity monitor
	client := places.NewClient(cfg.Places.ClientConfig())
	defer client.Close()

	monitor := network.NewMonitor(cfg.Network.ProbeURL, cfg.Network.ProbeTimeoutDuration())

	// Review service
	svc := reviews.New(reviews.Config{
		PlaceID: cfg.Places.PlaceID,
		APIKey:  cfg.Places.APIKey,
	}, client, store, monitor)
	defer svc.Close()

	if cfg.Places.APIKey == "" || cfg.Places.PlaceID == "" {
		slog.Warn("Places API key or place ID missing, widget will serve fallback content")
	}

	// HTTP server
	srv := server.New(svc, monitor.Online, cfg.Server.Port, cfg.Server.AllowedOrigins)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case err := <-errChan:
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped gracefully")
}
