package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/core/observability/log"
	"github.com/zeusync/sentry/internal/sim"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message types sent to feed clients.
const (
	TypeFrame = "frame"
	TypeAck   = "ack"
	TypeError = "error"
)

// Message is the envelope of everything written to a feed client.
type Message struct {
	Type  string     `json:"type"`
	Frame *sim.Frame `json:"frame,omitempty"`
	Agent npc.Handle `json:"agent,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Command asks an agent to change state. Clients send it as JSON.
type Command struct {
	Agent  npc.Handle `json:"agent"`
	State  npc.State  `json:"state"`
	Target npc.Handle `json:"target,omitempty"`
}

// Controller applies commands from feed clients. *sim.Runner implements it.
type Controller interface {
	Request(id npc.Handle, to npc.State, target npc.Handle) error
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// Hub fans frames out to every connected client. Slow clients miss frames
// instead of stalling the simulation.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte
	buffer  int
	dropped atomic.Uint64
	log     log.Log
}

func NewHub(buffer int, logger log.Log) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Hub{clients: make(map[*client]struct{}), buffer: buffer, log: logger}
}

// Observe broadcasts a frame. It never blocks.
func (h *Hub) Observe(f sim.Frame) error {
	b, err := json.Marshal(Message{Type: TypeFrame, Frame: &f})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.last = b
	h.mu.Unlock()
	h.broadcast(b)
	return nil
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts frames not delivered to slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log.Debug("closing feed", log.Int("clients", len(h.clients)), log.Int("dropped", int(h.dropped.Load())))
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(b []byte) {
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.dropped.Add(1)
		}
	}
	h.mu.RUnlock()
}

// reply queues b for one client if it is still connected.
func (h *Hub) reply(c *client, m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
		h.dropped.Add(1)
	}
}

// WebSocketServer serves the snapshot feed on a single endpoint.
type WebSocketServer struct {
	hub          *Hub
	auth         *TokenAuth
	control      Controller
	writeTimeout time.Duration
	log          log.Log
}

func NewWebSocketServer(hub *Hub, auth *TokenAuth, control Controller, logger log.Log) *WebSocketServer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &WebSocketServer{hub: hub, auth: auth, control: control, writeTimeout: 5 * time.Second, log: logger}
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.OnConnect(r); err != nil {
		s.log.Warn("feed client rejected", log.String("remote", r.RemoteAddr), log.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.String("remote", r.RemoteAddr), log.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, s.hub.buffer), addr: conn.RemoteAddr().String()}
	s.hub.add(c)
	s.log.Debug("feed client connected", log.String("remote", c.addr))

	go s.readLoop(c)

	defer func() {
		s.hub.remove(c)
		_ = conn.Close()
		s.log.Debug("feed client disconnected", log.String("remote", c.addr))
	}()
	for b := range c.send {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
}

func (s *WebSocketServer) readLoop(c *client) {
	defer s.hub.remove(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.hub.reply(c, Message{Type: TypeError, Error: fmt.Sprintf("%s: %v", ErrInvalidMessage, err)})
			continue
		}
		s.hub.reply(c, s.apply(cmd))
	}
}

func (s *WebSocketServer) apply(cmd Command) Message {
	if s.control == nil {
		return Message{Type: TypeError, Agent: cmd.Agent, Error: ErrReadOnly.Error()}
	}
	if err := s.control.Request(cmd.Agent, cmd.State, cmd.Target); err != nil {
		return Message{Type: TypeError, Agent: cmd.Agent, Error: err.Error()}
	}
	s.log.Info("state requested", log.String("agent", string(cmd.Agent)), log.Stringer("state", cmd.State))
	return Message{Type: TypeAck, Agent: cmd.Agent}
}
