package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/api"
	"audiojoin-manager/internal/breakouts"
	"audiojoin-manager/internal/config"
	"audiojoin-manager/internal/manager"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	if err := config.SetupLogging(&cfg.Logging); err != nil {
		logrus.Fatalf("Failed to setup logging: %v", err)
	}

	logrus.Info("Starting Audio Join Manager")

	// Create session manager
	sessionManager := manager.NewSessionManager(cfg)

	// Start session manager
	if err := sessionManager.Start(); err != nil {
		logrus.Fatalf("Failed to start session manager: %v", err)
	}

	// Breakout membership feed is optional
	var feed *breakouts.Subscriber
	if cfg.Breakouts.NATSURL != "" {
		feed, err = breakouts.NewSubscriber(cfg.Breakouts.NATSURL, cfg.Breakouts.SubjectPrefix, sessionManager)
		if err != nil {
			logrus.Fatalf("Failed to connect breakout feed: %v", err)
		}
		if err := feed.Start(); err != nil {
			logrus.Fatalf("Failed to start breakout feed: %v", err)
		}
	}

	// Setup router
	router := api.SetupRouter(cfg, sessionManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop feeding events before the sessions go away
	if feed != nil {
		if err := feed.Close(); err != nil {
			logrus.Errorf("Failed to close breakout feed: %v", err)
		}
	}

	if err := sessionManager.Stop(); err != nil {
		logrus.Errorf("Failed to stop session manager: %v", err)
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
