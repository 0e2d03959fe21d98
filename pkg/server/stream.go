package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/DashNode-Org/teranode-monitor/pkg/status"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBuffer   = 8
	writeTimeout = 10 * time.Second
)

type streamMessage struct {
	Type string          `json:"type"`
	Data status.Snapshot `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Stream pushes every published snapshot to connected dashboard clients.
type Stream struct {
	cache    *status.Cache
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

func NewStream(cache *status.Cache) *Stream {
	return &Stream{
		cache: cache,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (s *Stream) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	cl := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	// Queue the current snapshot under the lock so it always precedes updates.
	if msg, err := encodeSnapshot(s.cache.Snapshot()); err == nil {
		cl.send <- msg
	}
	s.clients[cl] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(cl)
	s.readLoop(cl)
}

// Publish fans snap out to all clients. Clients that cannot keep up are dropped.
func (s *Stream) Publish(snap status.Snapshot) {
	msg, err := encodeSnapshot(snap)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode snapshot for stream")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		select {
		case cl.send <- msg:
		default:
			log.Warn().Str("remote", cl.conn.RemoteAddr().String()).Msg("Dropping slow stream client")
			s.removeLocked(cl)
		}
	}
}

func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client and rejects new ones.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for cl := range s.clients {
		s.removeLocked(cl)
	}
}

func (s *Stream) readLoop(cl *wsClient) {
	defer func() {
		s.mu.Lock()
		s.removeLocked(cl)
		s.mu.Unlock()
	}()

	cl.conn.SetReadLimit(512)
	for {
		// clients never send anything we act on; reading detects disconnects
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) writeLoop(cl *wsClient) {
	defer cl.conn.Close()

	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}

	cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Stream) removeLocked(cl *wsClient) {
	if _, ok := s.clients[cl]; !ok {
		return
	}
	delete(s.clients, cl)
	close(cl.send)
}

func encodeSnapshot(snap status.Snapshot) ([]byte, error) {
	return json.Marshal(streamMessage{Type: "status", Data: snap})
}
