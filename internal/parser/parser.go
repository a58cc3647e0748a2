package parser

import (
	"encoding/json"
	"fmt"

	"github.com/virtualhems/fleet-relay/internal/types"
)

// ValidationError describes a telemetry payload that was rejected at the
// ingress boundary. Callers log it and drop the payload; it never crashes
// the process or reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid telemetry: %s %s", e.Field, e.Reason)
}

// ParseTelemetry decodes a relay telemetry push into a typed record.
// The participant identity is required; numeric fields must be within
// physical ranges when present. Missing numerics are tolerated and
// zero-valued, matching what the sim plug-ins actually send.
func ParseTelemetry(data []byte) (*types.TelemetryRecord, error) {
	rec, err := decode(data)
	if err != nil {
		return nil, err
	}
	if rec.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	return rec, nil
}

// ParseBridgeTelemetry decodes a bridge telemetry push. The bridge is
// single-tenant so no identity is required; everything else is validated
// the same way.
func ParseBridgeTelemetry(data []byte) (*types.TelemetryRecord, error) {
	return decode(data)
}

func decode(data []byte) (*types.TelemetryRecord, error) {
	var rec types.TelemetryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &ValidationError{Field: "body", Reason: "is not a telemetry object"}
	}
	if err := validate(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func validate(rec *types.TelemetryRecord) error {
	if rec.Latitude < -90 || rec.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: "out of range"}
	}
	if rec.Longitude < -180 || rec.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: "out of range"}
	}
	if rec.HeadingDeg < 0 || rec.HeadingDeg > 360 {
		return &ValidationError{Field: "heading_deg", Reason: "out of range"}
	}
	if rec.GroundSpeedKts < 0 {
		return &ValidationError{Field: "ground_speed_kts", Reason: "is negative"}
	}
	if rec.FuelRemainingLbs < 0 {
		return &ValidationError{Field: "fuel_remaining_lbs", Reason: "is negative"}
	}
	if rec.Timestamp < 0 {
		return &ValidationError{Field: "timestamp", Reason: "is negative"}
	}
	if !rec.Phase.Valid() {
		return &ValidationError{Field: "phase", Reason: "is unknown"}
	}
	return nil
}
