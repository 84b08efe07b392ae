package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"binance-futures-client/config"
	"binance-futures-client/internal/api"
	"binance-futures-client/internal/app"
	"binance-futures-client/internal/auth"
	"binance-futures-client/internal/logging"
	"binance-futures-client/internal/metrics"
)

func main() {
	// Load configuration
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize structured logging
	logger, closer, err := logging.New(logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "gateway",
	})
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to initialize logging")
	}
	defer closer.Close()

	ctx := context.Background()

	futures, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize futures client")
	}
	defer futures.Close()

	var jwtManager *auth.JWTManager
	if cfg.AuthConfig.Enabled {
		jwtManager = auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.Issuer, cfg.AuthConfig.TokenDuration)
		logger.Info().Str("issuer", cfg.AuthConfig.Issuer).Msg("Service token authentication enabled")
	}

	serverConfig := api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		AllowedOrigins: api.SplitOrigins(cfg.ServerConfig.AllowedOrigins),
		ProductionMode: !strings.EqualFold(cfg.LoggingConfig.Level, "DEBUG"),
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
	}
	if cfg.ServerConfig.TLSEnabled {
		serverConfig.TLSCertFile = cfg.ServerConfig.TLSCertFile
		serverConfig.TLSKeyFile = cfg.ServerConfig.TLSKeyFile
	}

	server := api.NewServer(serverConfig, futures.Router, futures.Limiter, jwtManager, logger)

	// Start web server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start web server")
		}
	}()

	var metricsServer *metrics.Server
	if cfg.MetricsConfig.Enabled && cfg.MetricsConfig.Address != "" {
		metricsServer = metrics.NewServer(cfg.MetricsConfig.Address, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down...")

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down web server")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error shutting down metrics server")
		}
	}

	logger.Info().Msg("Shutdown complete")
}
