package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// stateEvent is one websocket frame: a topic and its new raw value.
type stateEvent struct {
	Topic string `json:"topic"`
	Value string `json:"value"`
}

// clientBuffer bounds the per-client send queue. A client that cannot keep
// up is disconnected rather than allowed to stall the broadcast path.
const clientBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// State values are not sensitive; the query surface is equally open.
	CheckOrigin: func(*http.Request) bool { return true },
}

// stateHub fans state events out to connected websocket clients.
type stateHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan stateEvent
}

func newStateHub() *stateHub {
	return &stateHub{clients: make(map[*websocket.Conn]chan stateEvent)}
}

func (h *stateHub) add(conn *websocket.Conn) chan stateEvent {
	ch := make(chan stateEvent, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *stateHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
}

// broadcast queues the event for every client. Clients with a full buffer
// are dropped; broadcast itself never blocks.
func (h *stateHub) broadcast(topic, value string) {
	event := stateEvent{Topic: topic, Value: value}

	h.mu.Lock()
	var stale []*websocket.Conn
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			stale = append(stale, conn)
		}
	}
	for _, conn := range stale {
		close(h.clients[conn])
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range stale {
		conn.Close()
	}
}

func (h *stateHub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn, ch := range h.clients {
		conns = append(conns, conn)
		close(ch)
	}
	h.clients = make(map[*websocket.Conn]chan stateEvent)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *stateHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleWebsocket upgrades the connection and streams state events until the
// client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	ch := s.hub.add(conn)
	s.logger.Debug("Websocket client connected", "remote", conn.RemoteAddr().String())

	// Reader goroutine: we never expect client frames, but reading is what
	// detects the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(conn)
				conn.Close()
				return
			}
		}
	}()

	for event := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			s.hub.remove(conn)
			conn.Close()
			return
		}
	}
}
