package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mantonx/mediawall/internal/config"
	"github.com/mantonx/mediawall/internal/database"
	"github.com/mantonx/mediawall/internal/logger"
	"github.com/mantonx/mediawall/internal/server"
)

func main() {
	configPath := os.Getenv("MEDIAWALL_CONFIG")
	if err := config.Load(configPath); err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := database.Initialize(&cfg.Database); err != nil {
		logger.Error("Failed to initialize database: %v", err)
		os.Exit(1)
	}

	router, err := server.SetupRouter()
	if err != nil {
		logger.Error("Failed to start server: %v", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("Media wall server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown incomplete: %v", err)
	}
	server.Shutdown()
}
