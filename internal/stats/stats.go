package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks telemetry processing statistics.
type Stats struct {
	// Push counts
	TotalPushes     uint64
	AcceptedPushes  uint64
	RejectedPushes  uint64
	ThrottledPushes uint64

	// Fan-out counts
	BroadcastFrames uint64
	DroppedFrames   uint64

	// Live tracking
	ActiveConnections uint64
	FleetSize         uint64

	// Timing
	LastPushTime time.Time

	mu sync.RWMutex
}

// New creates a new Stats instance.
func New() *Stats {
	return &Stats{
		LastPushTime: time.Now(),
	}
}

// IncrementTotalPushes increments the total pushes counter.
func (s *Stats) IncrementTotalPushes() {
	atomic.AddUint64(&s.TotalPushes, 1)
}

// IncrementAcceptedPushes increments the accepted pushes counter.
func (s *Stats) IncrementAcceptedPushes() {
	atomic.AddUint64(&s.AcceptedPushes, 1)
}

// IncrementRejectedPushes increments the rejected pushes counter.
func (s *Stats) IncrementRejectedPushes() {
	atomic.AddUint64(&s.RejectedPushes, 1)
}

// IncrementThrottledPushes increments the throttled pushes counter.
func (s *Stats) IncrementThrottledPushes() {
	atomic.AddUint64(&s.ThrottledPushes, 1)
}

// AddBroadcastFrames adds to the broadcast frames counter.
func (s *Stats) AddBroadcastFrames(n uint64) {
	atomic.AddUint64(&s.BroadcastFrames, n)
}

// IncrementDroppedFrames increments the dropped frames counter.
func (s *Stats) IncrementDroppedFrames() {
	atomic.AddUint64(&s.DroppedFrames, 1)
}

// SetActiveConnections sets the number of live connections.
func (s *Stats) SetActiveConnections(count uint64) {
	atomic.StoreUint64(&s.ActiveConnections, count)
}

// SetFleetSize sets the number of retained fleet entries.
func (s *Stats) SetFleetSize(count uint64) {
	atomic.StoreUint64(&s.FleetSize, count)
}

// UpdateLastPushTime updates the last push time.
func (s *Stats) UpdateLastPushTime() {
	s.mu.Lock()
	s.LastPushTime = time.Now()
	s.mu.Unlock()
}

// GetStats returns a copy of the current statistics.
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"total_pushes":       atomic.LoadUint64(&s.TotalPushes),
		"accepted_pushes":    atomic.LoadUint64(&s.AcceptedPushes),
		"rejected_pushes":    atomic.LoadUint64(&s.RejectedPushes),
		"throttled_pushes":   atomic.LoadUint64(&s.ThrottledPushes),
		"broadcast_frames":   atomic.LoadUint64(&s.BroadcastFrames),
		"dropped_frames":     atomic.LoadUint64(&s.DroppedFrames),
		"active_connections": atomic.LoadUint64(&s.ActiveConnections),
		"fleet_size":         atomic.LoadUint64(&s.FleetSize),
		"last_push_time":     s.LastPushTime,
	}
}

// String returns a string representation of the statistics.
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Total Pushes: %d\n"+
			"Accepted Pushes: %d\n"+
			"Rejected Pushes: %d\n"+
			"Throttled Pushes: %d\n"+
			"Broadcast Frames: %d\n"+
			"Dropped Frames: %d\n"+
			"Active Connections: %d\n"+
			"Fleet Size: %d\n"+
			"Last Push Time: %s",
		stats["total_pushes"],
		stats["accepted_pushes"],
		stats["rejected_pushes"],
		stats["throttled_pushes"],
		stats["broadcast_frames"],
		stats["dropped_frames"],
		stats["active_connections"],
		stats["fleet_size"],
		stats["last_push_time"],
	)
}
