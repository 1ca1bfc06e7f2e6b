package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/errgroup"
)

const defaultFanOutLimit = 32

// Engine delivers envelopes to every connection of a room.
type Engine struct {
	registry *Registry
	logger   types.Logger
	limit    int

	delivered atomic.Int64
	failed    atomic.Int64
}

// NewEngine creates an engine that reads connections from registry.
func NewEngine(registry *Registry, logger types.Logger) *Engine {
	return &Engine{
		registry: registry,
		logger:   logger,
		limit:    defaultFanOutLimit,
	}
}

// Broadcast sends env to every connection currently registered for roomID
// and returns how many sends succeeded. A failed send is logged and skipped;
// the connection stays registered and its own read loop handles the
// disconnect. Broadcast returns once every send attempt has finished, so
// successive calls from one caller reach each peer in call order.
// Sends are never cancelled by ctx.
func (e *Engine) Broadcast(_ context.Context, roomID string, env Envelope) (int, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s envelope: %w", env.Type, err)
	}

	entries := e.registry.ConnectionsFor(roomID)
	if len(entries) == 0 {
		return 0, nil
	}

	var sent atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.limit)
	for _, entry := range entries {
		g.Go(func() error {
			if err := entry.Peer.Send(data); err != nil {
				e.failed.Add(1)
				e.logger.Warn("Failed to send to connection",
					"roomID", roomID,
					"guestID", entry.GuestID,
					"type", env.Type.String(),
					"error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	e.delivered.Add(sent.Load())
	return int(sent.Load()), nil
}

// Stats returns the lifetime delivered and failed send counts.
func (e *Engine) Stats() (delivered, failed int64) {
	return e.delivered.Load(), e.failed.Load()
}
