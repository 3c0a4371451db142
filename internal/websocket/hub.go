package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/monitoring"
)

// Hub keeps track of the open Discover sessions
type Hub struct {
	// Registered sessions
	sessions map[*Session]bool

	// Register requests from sessions
	register chan *Session

	// Unregister requests from sessions
	unregister chan *Session

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		sessions:   make(map[*Session]bool),
		done:       make(chan struct{}),
	}
}

// Run serves register and unregister requests until ctx is done, then
// closes every session
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	metrics := monitoring.Get()
	for {
		select {
		case session := <-h.register:
			h.mu.Lock()
			h.sessions[session] = true
			h.mu.Unlock()
			metrics.SessionOpened()
			log.Info().Str("session_id", session.id).Str("org", session.org).Msg("Session opened")

		case session := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[session]; ok {
				delete(h.sessions, session)
				session.close()
				metrics.SessionClosed()
				log.Info().Str("session_id", session.id).Str("org", session.org).Msg("Session closed")
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for session := range h.sessions {
				delete(h.sessions, session)
				session.close()
				metrics.SessionClosed()
			}
			h.mu.Unlock()
			return
		}
	}
}

// add registers a session; false means the hub has stopped
func (h *Hub) add(s *Session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
		s.close()
	}
}

// BroadcastToOrganization sends a message to every session of org
func (h *Hub) BroadcastToOrganization(org, messageType string, data interface{}) {
	msg, err := json.Marshal(models.WebSocketMessage{Type: messageType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", messageType).Msg("Failed to encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions {
		if session.org == org {
			session.enqueue(msg)
		}
	}
}

// GetConnectedSessions returns the number of open sessions
func (h *Hub) GetConnectedSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
