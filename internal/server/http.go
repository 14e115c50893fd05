package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeusync/sentry/internal/core/observability/log"
)

// Config holds debug feed settings.
type Config struct {
	ListenAddr string
	// Token, when set, is required from feed clients.
	Token string
}

// HTTPServer exposes the feed on /ws and a liveness probe on /healthz.
type HTTPServer struct {
	server  *http.Server
	ws      *WebSocketServer
	hub     *Hub
	log     log.Log
	mu      sync.Mutex
	addr    net.Addr
	started time.Time
}

func NewHTTPServer(cfg Config, hub *Hub, control Controller, logger log.Log) *HTTPServer {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &HTTPServer{
		hub: hub,
		ws:  NewWebSocketServer(hub, &TokenAuth{Token: cfg.Token}, control, logger),
		log: logger,
	}
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens synchronously and serves in the background.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != nil {
		return ErrServerAlreadyRunning
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.started = time.Now()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("debug feed stopped", log.Error(err))
		}
	}()
	s.log.Info("debug feed listening", log.String("addr", s.addr.String()))
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Stop disconnects feed clients and shuts the listener down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.addr != nil
	s.mu.Unlock()
	if !running {
		return ErrServerNotRunning
	}
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ws":
		s.ws.handleWebSocket(w, r)
	case "/healthz":
		s.handleHealth(w, r)
	default:
		http.NotFound(w, r)
	}
}

// Health is the /healthz response body.
type Health struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Dropped uint64 `json:"dropped"`
	Uptime  string `json:"uptime"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	h := Health{Status: "ok", Clients: s.hub.Clients(), Dropped: s.hub.Dropped()}
	if !started.IsZero() {
		h.Uptime = time.Since(started).Round(time.Second).String()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}
