package parser

import (
	"errors"
	"testing"

	"github.com/virtualhems/fleet-relay/internal/types"
)

func TestParseTelemetry(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expectError bool
	}{
		{
			name:    "complete record",
			payload: `{"user_id":"p1","callsign":"LIFEGUARD 1","latitude":40.44,"longitude":-79.99,"altitude_ft":1500,"ground_speed_kts":120,"heading_deg":270,"fuel_remaining_lbs":800,"phase":"EnroutePickup","timestamp":1700000000000}`,
		},
		{
			name:    "missing numeric fields are tolerated",
			payload: `{"user_id":"p1"}`,
		},
		{
			name:        "missing user_id",
			payload:     `{"latitude":40.44,"longitude":-79.99}`,
			expectError: true,
		},
		{
			name:        "not an object",
			payload:     `[1,2,3]`,
			expectError: true,
		},
		{
			name:        "malformed JSON",
			payload:     `{"user_id":`,
			expectError: true,
		},
		{
			name:        "latitude out of range",
			payload:     `{"user_id":"p1","latitude":91}`,
			expectError: true,
		},
		{
			name:        "longitude out of range",
			payload:     `{"user_id":"p1","longitude":-180.5}`,
			expectError: true,
		},
		{
			name:        "heading out of range",
			payload:     `{"user_id":"p1","heading_deg":361}`,
			expectError: true,
		},
		{
			name:    "heading 360 is accepted",
			payload: `{"user_id":"p1","heading_deg":360}`,
		},
		{
			name:        "negative ground speed",
			payload:     `{"user_id":"p1","ground_speed_kts":-1}`,
			expectError: true,
		},
		{
			name:        "negative fuel",
			payload:     `{"user_id":"p1","fuel_remaining_lbs":-10}`,
			expectError: true,
		},
		{
			name:        "unknown phase",
			payload:     `{"user_id":"p1","phase":"Orbiting"}`,
			expectError: true,
		},
		{
			name:    "boundary coordinates",
			payload: `{"user_id":"p1","latitude":-90,"longitude":180}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseTelemetry([]byte(tt.payload))

			if (err != nil) != tt.expectError {
				t.Fatalf("ParseTelemetry() error = %v, expectError %v", err, tt.expectError)
			}
			if tt.expectError {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("Expected *ValidationError, got %T", err)
				}
				return
			}
			if rec == nil {
				t.Fatal("Expected record, got nil")
			}
		})
	}
}

func TestParseTelemetry_Fields(t *testing.T) {
	payload := `{"user_id":"p1","latitude":40.44,"longitude":-79.99,"altitude_ft":1200,"phase":"AtScene","mission_id":"HEMS-4220"}`

	rec, err := ParseTelemetry([]byte(payload))
	if err != nil {
		t.Fatalf("ParseTelemetry() failed: %v", err)
	}

	if rec.UserID != "p1" {
		t.Errorf("UserID = %q, want p1", rec.UserID)
	}
	if rec.Latitude != 40.44 || rec.Longitude != -79.99 {
		t.Errorf("Position = (%v, %v), want (40.44, -79.99)", rec.Latitude, rec.Longitude)
	}
	if rec.AltitudeFt != 1200 {
		t.Errorf("AltitudeFt = %v, want 1200", rec.AltitudeFt)
	}
	if rec.Phase != types.PhaseAtScene {
		t.Errorf("Phase = %q, want AtScene", rec.Phase)
	}
	if rec.MissionID != "HEMS-4220" {
		t.Errorf("MissionID = %q, want HEMS-4220", rec.MissionID)
	}
	if rec.VPSTimestamp != 0 {
		t.Errorf("VPSTimestamp should not be set by the parser, got %d", rec.VPSTimestamp)
	}
}

func TestParseBridgeTelemetry(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expectError bool
	}{
		{
			name:    "no identity required",
			payload: `{"latitude":40.44,"longitude":-79.99}`,
		},
		{
			name:    "empty object",
			payload: `{}`,
		},
		{
			name:        "non-object body",
			payload:     `"telemetry"`,
			expectError: true,
		},
		{
			name:        "range validation still applies",
			payload:     `{"latitude":100}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBridgeTelemetry([]byte(tt.payload))
			if (err != nil) != tt.expectError {
				t.Errorf("ParseBridgeTelemetry() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "latitude", Reason: "out of range"}
	want := "invalid telemetry: latitude out of range"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
