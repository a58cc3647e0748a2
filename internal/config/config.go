package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// BridgeConfig holds the local bridge configuration.
type BridgeConfig struct {
	Addr         string
	NATSURL      string // empty disables the telemetry uplink
	ChatAgentURL string // empty disables the chat relay
	ChatAPIKey   string
}

// RelayConfig holds the relay configuration.
type RelayConfig struct {
	Addr           string
	NATSURL        string // empty disables the NATS ingress
	RedisAddr      string // empty disables the live-fleet mirror
	GhostThreshold time.Duration
	PushRate       float64 // telemetry pushes per second per connection
	PushBurst      int
}

// LoadBridge loads the bridge configuration from environment variables
// and an optional .env file.
func LoadBridge() (*BridgeConfig, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	addr := os.Getenv("BRIDGE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &BridgeConfig{
		Addr:         addr,
		NATSURL:      os.Getenv("NATS_URL"),
		ChatAgentURL: os.Getenv("CHAT_AGENT_URL"),
		ChatAPIKey:   os.Getenv("CHAT_API_KEY"),
	}, nil
}

// LoadRelay loads the relay configuration from environment variables and
// an optional .env file.
func LoadRelay() (*RelayConfig, error) {
	_ = godotenv.Load()

	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	ghost := 15 * time.Minute
	if v := os.Getenv("GHOST_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GHOST_THRESHOLD: %w", err)
		}
		ghost = d
	}

	pushRate := 10.0
	if v := os.Getenv("PUSH_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("invalid PUSH_RATE: %q", v)
		}
		pushRate = r
	}

	pushBurst := 20
	if v := os.Getenv("PUSH_BURST"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil || b <= 0 {
			return nil, fmt.Errorf("invalid PUSH_BURST: %q", v)
		}
		pushBurst = b
	}

	return &RelayConfig{
		Addr:           addr,
		NATSURL:        os.Getenv("NATS_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		GhostThreshold: ghost,
		PushRate:       pushRate,
		PushBurst:      pushBurst,
	}, nil
}
