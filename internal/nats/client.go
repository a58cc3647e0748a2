package nats

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/virtualhems/fleet-relay/internal/types"
)

const (
	SubjectTelemetry = "fleet.telemetry"
)

// Client represents a NATS client. Telemetry is ephemeral last-value
// data, so it rides core NATS pub/sub with no stream or retention.
type Client struct {
	conn *nats.Conn
}

// New creates a new NATS client.
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{conn: nc}, nil
}

// PublishTelemetry publishes a telemetry record to NATS.
func (c *Client) PublishTelemetry(rec *types.TelemetryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}

	if err := c.conn.Publish(SubjectTelemetry, data); err != nil {
		return fmt.Errorf("failed to publish telemetry: %w", err)
	}

	return nil
}

// SubscribeTelemetry subscribes to telemetry records.
func (c *Client) SubscribeTelemetry(handler func(*types.TelemetryRecord)) error {
	_, err := c.conn.Subscribe(SubjectTelemetry, func(msg *nats.Msg) {
		var rec types.TelemetryRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			log.Printf("Error unmarshaling telemetry: %v", err)
			return
		}
		handler(&rec)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// IsConnected reports whether the underlying connection is up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
