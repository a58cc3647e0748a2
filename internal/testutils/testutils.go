package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/virtualhems/fleet-relay/internal/types"
)

// MockTelemetryRecord creates a telemetry record for testing.
func MockTelemetryRecord(userID string) *types.TelemetryRecord {
	return &types.TelemetryRecord{
		UserID:           userID,
		Callsign:         "LIFEGUARD 1",
		Latitude:         40.44,
		Longitude:        -79.99,
		AltitudeFt:       1500,
		GroundSpeedKts:   120,
		HeadingDeg:       270,
		FuelRemainingLbs: 800,
		Phase:            types.PhaseEnroutePickup,
		Timestamp:        time.Now().UnixMilli(),
	}
}

// WaitForCondition waits for a condition to be true with timeout.
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
