package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/virtualhems/fleet-relay/internal/parser"
	"github.com/virtualhems/fleet-relay/internal/stats"
	"github.com/virtualhems/fleet-relay/internal/store"
	"github.com/virtualhems/fleet-relay/internal/types"
)

// outboundBuffer bounds the per-connection send queue. A consumer that
// falls further behind has frames dropped rather than stalling the
// broadcaster.
const outboundBuffer = 64

// Mirror is the optional out-of-process copy of the live fleet.
type Mirror interface {
	StoreFleetEntry(ctx context.Context, rec *types.TelemetryRecord) error
}

// Conn is one live relay connection. It starts unidentified; the first
// accepted telemetry push binds it to a participant identity.
type Conn struct {
	ID string

	hub      *Hub
	limiter  *rate.Limiter
	outbound chan []byte

	mu     sync.Mutex
	userID string
}

// UserID returns the bound participant identity, or "" before the first
// accepted push.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) bind(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// Outbound returns the channel of frames queued for this connection.
// The channel is closed when the connection is unregistered.
func (c *Conn) Outbound() <-chan []byte {
	return c.outbound
}

// send queues a frame without blocking. Reports whether the frame was
// accepted.
func (c *Conn) send(frame []byte) bool {
	select {
	case c.outbound <- frame:
		return true
	default:
		return false
	}
}

// Hub tracks live relay connections and fans accepted telemetry out to
// every consumer except its origin. It owns the connection lifecycle;
// the store entry for a disconnected participant is deliberately left
// in place so observers keep its last known position.
type Hub struct {
	store *store.Store
	stats *stats.Stats

	mirror Mirror
	now    func() time.Time

	pushRate  rate.Limit
	pushBurst int

	mu    sync.RWMutex
	conns map[string]*Conn
}

// Option configures a Hub.
type Option func(*Hub)

// WithMirror makes the hub copy each accepted record into an
// out-of-process mirror, best-effort.
func WithMirror(m Mirror) Option {
	return func(h *Hub) { h.mirror = m }
}

// WithClock overrides the hub clock (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithPushLimit sets the per-connection telemetry push budget.
func WithPushLimit(perSecond float64, burst int) Option {
	return func(h *Hub) {
		h.pushRate = rate.Limit(perSecond)
		h.pushBurst = burst
	}
}

// New creates a hub over the given store.
func New(st *store.Store, s *stats.Stats, opts ...Option) *Hub {
	h := &Hub{
		store:     st,
		stats:     s,
		now:       time.Now,
		pushRate:  rate.Limit(10),
		pushBurst: 20,
		conns:     make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a new unidentified connection and returns it.
func (h *Hub) Register() *Conn {
	c := &Conn{
		ID:       uuid.New().String(),
		hub:      h,
		limiter:  rate.NewLimiter(h.pushRate, h.pushBurst),
		outbound: make(chan []byte, outboundBuffer),
	}

	h.mu.Lock()
	h.conns[c.ID] = c
	count := len(h.conns)
	h.mu.Unlock()

	h.stats.SetActiveConnections(uint64(count))
	log.Printf("New connection established: %s", c.ID)
	return c
}

// Unregister removes a connection and closes its outbound channel.
// Idempotent. The participant's store entry is not removed.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c.ID]
	if ok {
		delete(h.conns, c.ID)
	}
	count := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(c.outbound)
	h.stats.SetActiveConnections(uint64(count))
	log.Printf("Connection lost: %s", c.ID)
}

// HandlePush processes a telemetry_push payload from a connection:
// validate, stamp receipt time, upsert, then broadcast to every other
// connection. Rejected or throttled payloads are dropped without
// touching the store.
func (h *Hub) HandlePush(c *Conn, payload []byte) {
	h.stats.IncrementTotalPushes()
	h.stats.UpdateLastPushTime()

	if !c.limiter.Allow() {
		h.stats.IncrementThrottledPushes()
		return
	}

	rec, err := parser.ParseTelemetry(payload)
	if err != nil {
		h.stats.IncrementRejectedPushes()
		log.Printf("Warning: dropping telemetry push from %s: %v", c.ID, err)
		return
	}

	if c.UserID() == "" {
		c.bind(rec.UserID)
		log.Printf("Connection %s identified as %s", c.ID, rec.UserID)
	}

	h.accept(rec, c)
}

// Ingest processes a telemetry record with no originating connection
// (e.g. arriving over NATS from a bridge). The record is re-stamped on
// receipt and broadcast to all connections.
func (h *Hub) Ingest(rec *types.TelemetryRecord) {
	h.stats.IncrementTotalPushes()
	h.stats.UpdateLastPushTime()

	if rec.UserID == "" {
		h.stats.IncrementRejectedPushes()
		log.Printf("Warning: dropping ingested telemetry without user_id")
		return
	}

	h.accept(rec, nil)
}

func (h *Hub) accept(rec *types.TelemetryRecord, origin *Conn) {
	rec.Stamp(h.now())

	h.store.Upsert(rec.UserID, *rec)
	h.stats.IncrementAcceptedPushes()
	h.stats.SetFleetSize(uint64(h.store.Len()))

	if h.mirror != nil {
		if err := h.mirror.StoreFleetEntry(context.Background(), rec); err != nil {
			log.Printf("Warning: failed to mirror fleet entry: %v", err)
		}
	}

	frame, err := marshalFleetUpdate(rec)
	if err != nil {
		log.Printf("Warning: failed to encode fleet update: %v", err)
		return
	}
	h.broadcast(origin, frame)
}

// broadcast queues frame on every connection except origin. Slow
// consumers have the frame dropped.
func (h *Hub) broadcast(origin *Conn, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var delivered uint64
	for _, c := range h.conns {
		if origin != nil && c.ID == origin.ID {
			continue
		}
		if c.send(frame) {
			delivered++
		} else {
			h.stats.IncrementDroppedFrames()
		}
	}
	h.stats.AddBroadcastFrames(delivered)
}

func marshalFleetUpdate(rec *types.TelemetryRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.Envelope{
		Event: types.EventFleetUpdate,
		Data:  data,
	})
}
