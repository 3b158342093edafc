package daemon

import (
	"context"
	"time"
)

// EventLoop runs periodic maintenance while the daemon is up
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: 30 * time.Second,
	}
}

// Run ticks until ctx is cancelled
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks()
		}
	}
}

// processTasks logs load so a stuck lane shows up in the logs.
func (e *EventLoop) processTasks() {
	lanes := e.daemon.queue.ActiveLanes()
	sessions := len(e.daemon.gatewayServer.Sessions())
	if lanes == 0 && sessions == 0 {
		return
	}
	e.daemon.logger.Debug().
		Int("active_lanes", lanes).
		Int("sessions", sessions).
		Msg("Runtime stats")
}
