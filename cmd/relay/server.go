package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/virtualhems/fleet-relay/internal/hub"
	"github.com/virtualhems/fleet-relay/internal/stats"
	"github.com/virtualhems/fleet-relay/internal/store"
	"github.com/virtualhems/fleet-relay/internal/types"
)

const writeTimeout = 5 * time.Second

// Server fronts the hub with the relay's HTTP surface: the websocket
// ingress/egress, the health endpoint and the ghost-filtered fleet
// snapshot.
type Server struct {
	store          *store.Store
	hub            *hub.Hub
	stats          *stats.Stats
	ghostThreshold time.Duration
}

// NewServer creates a relay server.
func NewServer(st *store.Store, h *hub.Hub, s *stats.Stats, ghostThreshold time.Duration) *Server {
	return &Server{
		store:          st,
		hub:            h,
		stats:          s,
		ghostThreshold: ghostThreshold,
	}
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/fleet", s.handleFleet)
	mux.HandleFunc("/ws", s.handleWS)
	return withCORS(mux)
}

// withCORS allows cross-origin access from anywhere, matching the
// relay's public surface.
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "nominal",
		"fleet_count": s.store.Len(),
	}); err != nil {
		log.Printf("Warning: failed to write health response: %v", err)
	}
}

// handleFleet serves a snapshot of the live fleet, filtered to entries
// younger than the ghost threshold. The store itself never prunes;
// filtering here keeps ancient positions out of dashboards.
func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fleet := make([]types.TelemetryRecord, 0)
	for _, e := range s.store.Snapshot() {
		if e.Age < s.ghostThreshold {
			fleet = append(fleet, e.Record)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"fleet_count": len(fleet),
		"fleet":       fleet,
	}); err != nil {
		log.Printf("Warning: failed to write fleet response: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("Warning: websocket accept failed: %v", err)
		return
	}
	defer ws.CloseNow()

	conn := s.hub.Register()
	defer s.hub.Unregister(conn)

	ctx := r.Context()

	if frame, err := welcomeFrame(conn.ID); err == nil {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		if err := ws.Write(wctx, websocket.MessageText, frame); err != nil {
			cancel()
			return
		}
		cancel()
	}

	go writeLoop(ctx, ws, conn)

	// Read loop. Any transport failure tears down only this connection.
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Warning: dropping malformed frame from %s: %v", conn.ID, err)
			continue
		}

		switch env.Event {
		case types.EventTelemetryPush:
			s.hub.HandlePush(conn, env.Data)
		default:
			// Unknown events are ignored so protocol additions don't
			// break older relays.
		}
	}
}

func writeLoop(ctx context.Context, ws *websocket.Conn, conn *hub.Conn) {
	for frame := range conn.Outbound() {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := ws.Write(wctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			return
		}
	}
}

func welcomeFrame(connID string) ([]byte, error) {
	data, err := json.Marshal(map[string]string{
		"status":        "connected",
		"connection_id": connID,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.Envelope{
		Event: types.EventStatus,
		Data:  data,
	})
}
