package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/virtualhems/fleet-relay/internal/config"
	"github.com/virtualhems/fleet-relay/internal/nats"
	"github.com/virtualhems/fleet-relay/internal/store"
)

func main() {
	cfg, err := config.LoadBridge()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// The uplink is optional: without NATS the bridge still serves the
	// local UI, it just doesn't feed the remote relay.
	var uplink Uplink
	var natsClient *nats.Client
	if cfg.NATSURL != "" {
		natsClient, err = nats.New(cfg.NATSURL)
		if err != nil {
			log.Printf("Failed to create NATS client: %v", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		uplink = natsClient
		log.Printf("Uplinking telemetry to NATS at %s", cfg.NATSURL)
	}

	server := NewServer(store.New(), uplink, cfg.ChatAgentURL, cfg.ChatAPIKey)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("Bridge active on %s, awaiting sim data link", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Server failed: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
}
