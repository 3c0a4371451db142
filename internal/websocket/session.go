package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/auth"
	"github.com/your-username/click-lite-discover/internal/discover"
	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB
)

// Session is one Discover session over a websocket. It routes the client's
// messages to a controller and pushes the resulting state back.
type Session struct {
	id         string
	org        string
	hub        *Hub
	conn       *websocket.Conn
	controller *discover.Controller

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// HandleSession upgrades the request and starts a Discover session for the
// organization resolved by the auth middleware
func HandleSession(hub *Hub, fetcher querybuilder.Fetcher, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := auth.OrganizationFromContext(r.Context())
		if !ok {
			http.Error(w, "Unknown organization", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("Failed to upgrade connection")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		s := &Session{
			id:     uuid.New().String(),
			org:    org.Slug,
			hub:    hub,
			conn:   conn,
			ctx:    ctx,
			cancel: cancel,
			send:   make(chan []byte, 256),
		}
		s.controller = discover.New(
			querybuilder.New(org, scopedFetcher(org, fetcher)),
			org.Slug,
			discover.WithNavigator(s),
			discover.WithNotifier(s),
		)

		if !hub.add(s) {
			cancel()
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			conn.Close()
			return
		}

		go s.writePump()
		go s.readPump()

		s.sendState()
	}
}

// checkOrigin accepts requests without an Origin header and those from an
// allowed origin; "*" allows every origin
// scopedFetcher rejects queries for projects outside org before they reach
// fetcher
func scopedFetcher(org models.Organization, fetcher querybuilder.Fetcher) querybuilder.Fetcher {
	return querybuilder.FetcherFunc(func(ctx context.Context, slug string, q models.QuerySpec) (*models.QueryResult, error) {
		if err := auth.ScopeQuery(org, &q); err != nil {
			return nil, err
		}
		return fetcher.Fetch(ctx, slug, q)
	})
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		log.Warn().Str("origin", origin).Msg("Rejected websocket origin")
		return false
	}
}

// Push implements discover.Navigator
func (s *Session) Push(path string) {
	s.sendMessage(models.MessageNavigate, map[string]string{"path": path})
}

// Error implements discover.Notifier
func (s *Session) Error(message string, err error) {
	log.Warn().Err(err).Str("session_id", s.id).Msg(message)
	data := map[string]string{
		"level":   "error",
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.sendMessage(models.MessageNotification, data)
}

// readPump handles incoming messages from the WebSocket connection
func (s *Session) readPump() {
	defer func() {
		s.cancel()
		s.wg.Wait()
		s.hub.remove(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("session_id", s.id).Msg("WebSocket error")
			}
			break
		}

		var msg models.WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Error().Err(err).Msg("Failed to parse WebSocket message")
			continue
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg models.WebSocketMessage) {
	switch msg.Type {
	case models.MessageUpdateField:
		u, err := querybuilder.ParseUpdate(msg.Field, msg.Value)
		if err != nil {
			s.Error("Invalid field update", err)
			return
		}
		s.controller.UpdateField(u)
		s.sendState()
	case models.MessageRunQuery:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runQuery()
		}()
	case models.MessageReset:
		s.controller.Reset()
		s.sendState()
	case models.MessageOrderbyOptions:
		s.sendMessage(models.MessageOrderbyOptions, s.controller.GetOrderbyOptions())
	case models.MessageLocation:
		if err := s.controller.ApplyLocation(msg.Search); err != nil {
			s.Error("Invalid location", err)
		}
		s.sendState()
	case models.MessagePing:
		s.sendStatus("pong", "")
	default:
		log.Warn().Str("type", msg.Type).Msg("Unknown message type")
	}
}

func (s *Session) runQuery() {
	s.sendStatus("running", "Query started")
	// Failures reach the client through Error
	_ = s.controller.RunQuery(s.ctx)
	if s.ctx.Err() != nil {
		return
	}
	s.sendState()
	s.Push(s.controller.SyncLocation())
}

// writePump handles outgoing messages to the WebSocket connection
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) state() models.SessionState {
	return models.SessionState{
		ViewState: s.controller.State(),
		Internal:  s.controller.Query(),
		Orderby:   s.controller.Orderby(),
		Running:   s.controller.Running(),
	}
}

func (s *Session) sendState() {
	s.sendMessage(models.MessageState, s.state())
}

// sendStatus sends a status message to the client
func (s *Session) sendStatus(status, message string) {
	s.sendMessage(models.MessageStatus, map[string]string{
		"status":  status,
		"message": message,
	})
}

func (s *Session) sendMessage(messageType string, data interface{}) {
	msg, err := json.Marshal(models.WebSocketMessage{Type: messageType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", messageType).Msg("Failed to encode message")
		return
	}
	s.enqueue(msg)
}

func (s *Session) enqueue(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
		log.Warn().Str("session_id", s.id).Msg("Session send buffer full")
	}
}

// close stops the session's writer; later sends are dropped
func (s *Session) close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}
