// ABOUTME: Request bookkeeping for the server status display
// ABOUTME: Tracks counters and pushes snapshots to the TUI
package server

import (
	"sync"
	"sync/atomic"
)

// stats is updated from request handlers and read by the TUI
type stats struct {
	answered   atomic.Int64
	rejected   atomic.Int64
	websockets atomic.Int64

	mu         sync.Mutex
	lastClient string
	lastReply  string
}

func (s *stats) answer(client, reply string) {
	s.answered.Add(1)
	s.mu.Lock()
	s.lastClient = client
	s.lastReply = reply
	s.mu.Unlock()
}

// Status returns a snapshot of the server state
func (s *Server) Status() ServerStatus {
	s.stats.mu.Lock()
	lastClient := s.stats.lastClient
	lastReply := s.stats.lastReply
	s.stats.mu.Unlock()

	return ServerStatus{
		Name:       s.config.Name,
		Port:       s.config.Port,
		Skew:       s.config.Skew,
		Answered:   s.stats.answered.Load(),
		Rejected:   s.stats.rejected.Load(),
		WebSockets: s.stats.websockets.Load(),
		LastClient: lastClient,
		LastReply:  lastReply,
	}
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.Status())
}
