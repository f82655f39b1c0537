package conn

import (
	"context"
	"log/slog"
	"time"

	"flagsgame.dev/internal/wire"
)

// Monitor periodically sends HEARTBEAT frames to every registered
// connection and evicts any connection that misses MaxMissedHeartbeats in
// a row.
type Monitor struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	onLost   func(c *Connection)
}

// NewMonitor builds a heartbeat monitor over registry. onLost is invoked
// (off the monitor's own goroutine state, synchronously) whenever a
// connection is judged dead so the caller can run its disconnect flow.
func NewMonitor(registry *Registry, onLost func(c *Connection)) *Monitor {
	return &Monitor{
		registry: registry,
		interval: DefaultHeartbeatInterval,
		timeout:  DefaultHeartbeatTimeout,
		onLost:   onLost,
	}
}

// Run drives the heartbeat loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	for _, c := range m.registry.All() {
		if c.CheckMissedBeat(m.timeout) {
			slog.Warn("connection missed heartbeats, evicting", "connId", c.ID, "userId", c.UserID)
			m.onLost(c)
			continue
		}
		c.MarkBeatSent()
		c.Enqueue(wire.Marshal(wire.TypeHeartbeat, nil))
	}
}
