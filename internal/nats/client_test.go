package nats

import (
	"encoding/json"
	"testing"

	"github.com/virtualhems/fleet-relay/internal/types"
)

func TestNew_Unit_URLs(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		expectError bool
	}{
		{
			name:        "empty URL should fail",
			url:         "",
			expectError: true,
		},
		{
			name:        "invalid URL should fail",
			url:         "invalid://url:12345",
			expectError: true,
		},
		{
			name:        "malformed URL should fail",
			url:         "not-a-url",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.url)

			if tt.expectError && err == nil {
				t.Error("Expected error, got none")
				if client != nil {
					client.Close()
				}
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if tt.expectError && client != nil {
				t.Error("Expected nil client on error")
			}
		})
	}
}

func TestClient_Close_Unit_NilSafety(t *testing.T) {
	client := &Client{conn: nil}
	client.Close() // Should not panic
}

func TestClient_IsConnected_Unit_NilSafety(t *testing.T) {
	client := &Client{conn: nil}
	if client.IsConnected() {
		t.Error("Nil connection should not report connected")
	}
}

func TestSubjectTelemetry_Unit_Constant(t *testing.T) {
	if SubjectTelemetry != "fleet.telemetry" {
		t.Errorf("Expected SubjectTelemetry to be 'fleet.telemetry', got %s", SubjectTelemetry)
	}
}

func TestClient_JSONSerialization_Unit(t *testing.T) {
	tests := []struct {
		name string
		rec  *types.TelemetryRecord
	}{
		{
			name: "full record",
			rec: &types.TelemetryRecord{
				UserID:           "p1",
				Callsign:         "LIFEGUARD 1",
				Latitude:         40.44,
				Longitude:        -79.99,
				AltitudeFt:       1500,
				GroundSpeedKts:   120,
				HeadingDeg:       270,
				FuelRemainingLbs: 800,
				Phase:            types.PhaseEnroutePickup,
				Timestamp:        1_700_000_000_000,
			},
		},
		{
			name: "zero record",
			rec:  &types.TelemetryRecord{},
		},
		{
			name: "unicode callsign",
			rec:  &types.TelemetryRecord{UserID: "p1", Callsign: "救援-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.rec)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var decoded types.TelemetryRecord
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if decoded != *tt.rec {
				t.Errorf("Round trip mismatch:\ngot  %+v\nwant %+v", decoded, *tt.rec)
			}
		})
	}
}
