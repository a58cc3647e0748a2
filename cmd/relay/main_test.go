package main

import (
	"testing"
	"time"

	"github.com/virtualhems/fleet-relay/internal/config"
	"github.com/virtualhems/fleet-relay/internal/hub"
	"github.com/virtualhems/fleet-relay/internal/stats"
	"github.com/virtualhems/fleet-relay/internal/store"
	"github.com/virtualhems/fleet-relay/internal/types"
)

type mockNATSClient struct {
	handler      func(*types.TelemetryRecord)
	subscribeErr error
	closed       bool
}

func (m *mockNATSClient) SubscribeTelemetry(handler func(*types.TelemetryRecord)) error {
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handler = handler
	return nil
}

func (m *mockNATSClient) Close() { m.closed = true }

func TestBuildHub_NoMirror(t *testing.T) {
	cfg := &config.RelayConfig{
		GhostThreshold: 15 * time.Minute,
		PushRate:       10,
		PushBurst:      20,
	}

	h, redisClient, err := buildHub(cfg, store.New(), stats.New())
	if err != nil {
		t.Fatalf("buildHub() failed: %v", err)
	}
	if h == nil {
		t.Fatal("Expected hub")
	}
	if redisClient != nil {
		t.Error("Expected no Redis client without REDIS_ADDR")
	}
}

func TestSetupNATSIngress(t *testing.T) {
	st := store.New()
	h := hub.New(st, stats.New())
	client := &mockNATSClient{}

	if err := setupNATSIngress(client, h); err != nil {
		t.Fatalf("setupNATSIngress() failed: %v", err)
	}
	if client.handler == nil {
		t.Fatal("Expected a subscription handler")
	}

	// Messages arriving over NATS flow into the store.
	client.handler(&types.TelemetryRecord{UserID: "bridge-1", Latitude: 40.44})

	rec, ok := st.Get("bridge-1")
	if !ok {
		t.Fatal("Expected store entry for bridge-1")
	}
	if rec.VPSTimestamp == 0 {
		t.Error("Ingested record should be stamped on receipt")
	}
}
