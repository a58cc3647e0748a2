package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/virtualhems/fleet-relay/internal/parser"
	"github.com/virtualhems/fleet-relay/internal/store"
	"github.com/virtualhems/fleet-relay/internal/types"
)

const (
	// localParticipant is the bridge's single implicit store identity.
	localParticipant = "local-sim"

	// heartbeatThreshold is how recently the sim must have pushed for
	// simConnected to report true.
	heartbeatThreshold = 5 * time.Second

	maxBodyBytes = 1 << 20
)

// Uplink forwards accepted telemetry toward the remote relay.
type Uplink interface {
	PublishTelemetry(rec *types.TelemetryRecord) error
	IsConnected() bool
}

// Server is the local bridge between a flight-sim plug-in and the
// dashboard UI. The plug-in pushes telemetry in, the UI polls status
// out; neither side ever blocks the other.
type Server struct {
	store      *store.Store
	uplink     Uplink // nil when no uplink is configured
	chatURL    string
	chatAPIKey string
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	missionID string
}

// NewServer creates a bridge server.
func NewServer(st *store.Store, uplink Uplink, chatURL, chatAPIKey string) *Server {
	return &Server{
		store:      st,
		uplink:     uplink,
		chatURL:    chatURL,
		chatAPIKey: chatAPIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// Handler returns the bridge's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", s.handleTelemetry)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/chat", s.handleChat)
	return withCORS(mux)
}

// withCORS allows cross-origin access; the bridge binds localhost so an
// open policy is acceptable here.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleTelemetry ingests one push from the sim plug-in. The plug-in is
// fire-and-forget: a failed request is simply lost and the plug-in
// resends on its own schedule.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	rec, err := parser.ParseBridgeTelemetry(body)
	if err != nil {
		log.Printf("Warning: rejecting telemetry push: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if rec.UserID == "" {
		rec.UserID = localParticipant
	}
	if rec.MissionID != "" {
		s.mu.Lock()
		s.missionID = rec.MissionID
		s.mu.Unlock()
	}

	rec.Stamp(s.now())
	// The bridge has exactly one telemetry slot. The record keeps its own
	// user_id for the uplink, where fleet identity matters, but locally
	// every push lands in the same slot the status endpoint reads.
	s.store.Upsert(localParticipant, *rec)

	if s.uplink != nil {
		if err := s.uplink.PublishTelemetry(rec); err != nil {
			log.Printf("Warning: failed to uplink telemetry: %v", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Printf("Warning: failed to write telemetry response: %v", err)
	}
}

// handleStatus serves the polled connectivity report. Pure read; it
// never blocks waiting for new data.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	missionID := s.missionID
	s.mu.Unlock()

	status := types.BridgeStatus{
		SimConnected:   s.store.IsFresh(localParticipant, heartbeatThreshold),
		CloudConnected: s.uplink == nil || s.uplink.IsConnected(),
		MissionID:      missionID,
	}
	if rec, ok := s.store.Get(localParticipant); ok {
		status.LastPacketReceived = rec.VPSTimestamp
		status.Telemetry = &rec
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("Warning: failed to write status response: %v", err)
	}
}

type chatRequest struct {
	APIKey      string `json:"apiKey,omitempty"`
	MissionID   string `json:"mission_id"`
	CrewMessage string `json:"crew_message"`
}

// handleChat forwards a crew message to the external dispatch agent.
// Upstream failure maps to the upstream status; telemetry serving is
// never affected.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.chatURL == "" {
		writeJSONError(w, http.StatusServiceUnavailable, "chat relay not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid chat request")
		return
	}
	if req.MissionID == "" || req.CrewMessage == "" {
		writeJSONError(w, http.StatusBadRequest, "mission_id and crew_message are required")
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.chatAPIKey
	}

	payload, err := json.Marshal(map[string]string{
		"mission_id":   req.MissionID,
		"crew_message": req.CrewMessage,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode chat request")
		return
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.chatURL, bytes.NewReader(payload))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to build chat request")
		return
	}
	upstream.Header.Set("Content-Type", "application/json")
	upstream.Header.Set("x-api-key", apiKey)

	resp, err := s.httpClient.Do(upstream)
	if err != nil {
		log.Printf("Warning: chat relay failed: %v", err)
		writeJSONError(w, http.StatusBadGateway, "dispatch agent unreachable")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("Warning: failed to copy chat response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		log.Printf("Warning: failed to write error response: %v", err)
	}
}
