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
	"github.com/virtualhems/fleet-relay/internal/hub"
	"github.com/virtualhems/fleet-relay/internal/nats"
	"github.com/virtualhems/fleet-relay/internal/redis"
	"github.com/virtualhems/fleet-relay/internal/stats"
	"github.com/virtualhems/fleet-relay/internal/store"
	"github.com/virtualhems/fleet-relay/internal/types"
)

// NATSClient interface for testability
type NATSClient interface {
	SubscribeTelemetry(handler func(*types.TelemetryRecord)) error
	Close()
}

// buildHub assembles the hub with the optional Redis mirror.
func buildHub(cfg *config.RelayConfig, st *store.Store, s *stats.Stats) (*hub.Hub, *redis.Client, error) {
	opts := []hub.Option{
		hub.WithPushLimit(cfg.PushRate, cfg.PushBurst),
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		client, err := redis.New(cfg.RedisAddr, cfg.GhostThreshold)
		if err != nil {
			return nil, nil, err
		}
		redisClient = client
		opts = append(opts, hub.WithMirror(client))
		log.Printf("Mirroring live fleet to Redis at %s", cfg.RedisAddr)
	}

	return hub.New(st, s, opts...), redisClient, nil
}

// setupNATSIngress subscribes bridge uplink telemetry into the hub.
func setupNATSIngress(client NATSClient, h *hub.Hub) error {
	return client.SubscribeTelemetry(func(rec *types.TelemetryRecord) {
		h.Ingest(rec)
	})
}

// logStats periodically logs processing statistics.
func logStats(ctx context.Context, s *stats.Stats) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics:\n%s", s)
		}
	}
}

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	st := store.New()
	processingStats := stats.New()

	fleetHub, redisClient, err := buildHub(cfg, st, processingStats)
	if err != nil {
		log.Printf("Failed to build hub: %v", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("Warning: error closing Redis client: %v", err)
			}
		}()
	}

	var natsClient *nats.Client
	if cfg.NATSURL != "" {
		natsClient, err = nats.New(cfg.NATSURL)
		if err != nil {
			log.Printf("Failed to create NATS client: %v", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		if err := setupNATSIngress(natsClient, fleetHub); err != nil {
			log.Printf("Failed to subscribe to telemetry: %v", err)
			os.Exit(1)
		}
		log.Printf("Ingesting uplink telemetry from NATS at %s", cfg.NATSURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go logStats(ctx, processingStats)

	server := NewServer(st, fleetHub, processingStats, cfg.GhostThreshold)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("Fleet relay active on %s", cfg.Addr)
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
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
}
