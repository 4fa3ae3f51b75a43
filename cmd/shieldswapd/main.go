// Command shieldswapd runs the local shielded-pool client daemon. It keeps
// a mirror of each configured pool's commitment tree, owns the deposit-note
// store, and brokers swap proofs to the external proving service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/app"
	"shieldswap-client/internal/config"
	"shieldswap-client/internal/router"
)

func main() {
	configPath := flag.String("config", "", "config file path (default config.yaml, preferring config.local.yaml)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg)

	logrus.WithFields(logrus.Fields{
		"networks": len(cfg.Networks),
		"database": cfg.Database.Enabled,
		"data_dir": cfg.Sync.DataDir,
	}).Info("Starting shieldswap client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.InitializeContainer(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize services: %v", err)
	}
	defer container.Cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(cfg, container),
	}

	go func() {
		logrus.WithField("addr", addr).Info("HTTP API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown incomplete")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
