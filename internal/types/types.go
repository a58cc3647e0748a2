package types

import (
	"encoding/json"
	"time"
)

// FlightPhase tags where a participant is in its mission.
type FlightPhase string

const (
	PhaseDispatch        FlightPhase = "Dispatch"
	PhaseEnroutePickup   FlightPhase = "EnroutePickup"
	PhaseAtScene         FlightPhase = "AtScene"
	PhaseEnrouteDropoff  FlightPhase = "EnrouteDropoff"
	PhaseReturningToBase FlightPhase = "ReturningToBase"
	PhaseComplete        FlightPhase = "Complete"
)

// Valid reports whether p is a known flight phase. The empty phase is
// valid: plug-ins that don't track mission state omit it.
func (p FlightPhase) Valid() bool {
	switch p {
	case "", PhaseDispatch, PhaseEnroutePickup, PhaseAtScene,
		PhaseEnrouteDropoff, PhaseReturningToBase, PhaseComplete:
		return true
	}
	return false
}

// TelemetryRecord represents one participant's instantaneous flight state.
// Timestamp is the origin clock in epoch milliseconds and is untrusted;
// VPSTimestamp is stamped on receipt and is authoritative.
type TelemetryRecord struct {
	UserID             string      `json:"user_id"`
	Callsign           string      `json:"callsign,omitempty"`
	MissionID          string      `json:"mission_id,omitempty"`
	Latitude           float64     `json:"latitude"`
	Longitude          float64     `json:"longitude"`
	AltitudeFt         float64     `json:"altitude_ft"`
	GroundSpeedKts     float64     `json:"ground_speed_kts"`
	HeadingDeg         float64     `json:"heading_deg"`
	VerticalSpeedFtMin float64     `json:"vertical_speed_ftmin"`
	FuelRemainingLbs   float64     `json:"fuel_remaining_lbs"`
	Phase              FlightPhase `json:"phase,omitempty"`
	Timestamp          int64       `json:"timestamp,omitempty"`
	VPSTimestamp       int64       `json:"vps_timestamp,omitempty"`
	Latency            int64       `json:"latency"`
}

// Stamp records the server receipt time and derives the diagnostic
// latency from the sender's claimed origin timestamp. A missing origin
// timestamp yields latency 0; an origin clock ahead of ours is clamped
// to 0 rather than reported negative.
func (r *TelemetryRecord) Stamp(now time.Time) {
	r.VPSTimestamp = now.UnixMilli()
	if r.Timestamp == 0 {
		r.Latency = 0
		return
	}
	r.Latency = r.VPSTimestamp - r.Timestamp
	if r.Latency < 0 {
		r.Latency = 0
	}
}

// Relay websocket event names.
const (
	EventTelemetryPush = "telemetry_push"
	EventFleetUpdate   = "fleet_update"
	EventStatus        = "status"
)

// Envelope is the frame exchanged over the relay's websocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// BridgeStatus is the connectivity report served by the bridge's
// polling endpoint.
type BridgeStatus struct {
	SimConnected       bool             `json:"simConnected"`
	CloudConnected     bool             `json:"cloudConnected"`
	MissionID          string           `json:"missionId,omitempty"`
	LastPacketReceived int64            `json:"lastPacketReceived"`
	Telemetry          *TelemetryRecord `json:"telemetry"`
}
