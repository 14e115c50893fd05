package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/sim"
)

const testToken = "supersecrettoken"

type fakeController struct {
	mu    sync.Mutex
	calls []Command
}

func (c *fakeController) Request(id npc.Handle, to npc.State, target npc.Handle) error {
	if id != "g" {
		return npc.ErrStaleReference
	}
	c.mu.Lock()
	c.calls = append(c.calls, Command{Agent: id, State: to, Target: target})
	c.mu.Unlock()
	return nil
}

func (c *fakeController) Calls() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Command(nil), c.calls...)
}

func feed(t *testing.T, control Controller) (*HTTPServer, *Hub, string) {
	t.Helper()
	hub := NewHub(8, nil)
	srv := NewHTTPServer(Config{Token: testToken}, hub, control, nil)
	s := httptest.NewServer(srv)
	t.Cleanup(func() {
		hub.Close()
		s.Close()
	})
	return srv, hub, "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func dial(t *testing.T, hub *Hub, u string) *websocket.Conn {
	t.Helper()
	before := hub.Clients()
	conn, _, err := websocket.DefaultDialer.Dial(u+"?token="+testToken, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestWebSocketAuth(t *testing.T) {
	_, hub, u := feed(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err, "no token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(u+"?token=invalid", nil)
	require.Error(t, err, "wrong token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	h := http.Header{}
	h.Set("Authorization", "Bearer "+testToken)
	conn, _, err := websocket.DefaultDialer.Dial(u, h)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketOpenFeed(t *testing.T) {
	hub := NewHub(1, nil)
	s := httptest.NewServer(NewHTTPServer(Config{}, hub, nil, nil))
	defer s.Close()
	defer hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketBroadcastsFrames(t *testing.T) {
	_, hub, u := feed(t, nil)
	a := dial(t, hub, u)
	b := dial(t, hub, u)

	require.NoError(t, hub.Observe(sim.Frame{
		Tick:        7,
		At:          sim.Epoch,
		Transitions: []npc.Transition{{From: npc.StatePatrol, To: npc.StateChase, Reason: npc.ReasonSighted, Target: "player"}},
	}))

	for _, conn := range []*websocket.Conn{a, b} {
		m := read(t, conn)
		assert.Equal(t, TypeFrame, m.Type)
		require.NotNil(t, m.Frame)
		assert.Equal(t, 7, m.Frame.Tick)
		require.Len(t, m.Frame.Transitions, 1)
		assert.Equal(t, npc.StateChase, m.Frame.Transitions[0].To)
	}
}

func TestWebSocketSendsLastFrameOnJoin(t *testing.T) {
	_, hub, u := feed(t, nil)
	require.NoError(t, hub.Observe(sim.Frame{Tick: 1}))
	require.NoError(t, hub.Observe(sim.Frame{Tick: 2}))

	conn := dial(t, hub, u)
	m := read(t, conn)
	require.NotNil(t, m.Frame)
	assert.Equal(t, 2, m.Frame.Tick)
}

func TestWebSocketDropsForSlowClients(t *testing.T) {
	hub := NewHub(2, nil)
	c := &client{send: make(chan []byte, 2)}
	hub.add(c)
	for i := 1; i <= 5; i++ {
		require.NoError(t, hub.Observe(sim.Frame{Tick: i}))
	}
	assert.Len(t, c.send, 2)
	assert.Equal(t, uint64(3), hub.Dropped())

	hub.Close()
	assert.Zero(t, hub.Clients())
	hub.remove(c)
}

func TestWebSocketCommands(t *testing.T) {
	ctrl := &fakeController{}
	_, hub, u := feed(t, ctrl)
	conn := dial(t, hub, u)

	require.NoError(t, conn.WriteJSON(Command{Agent: "g", State: npc.StateChase, Target: "player"}))
	m := read(t, conn)
	assert.Equal(t, TypeAck, m.Type)
	assert.Equal(t, npc.Handle("g"), m.Agent)
	assert.Equal(t, []Command{{Agent: "g", State: npc.StateChase, Target: "player"}}, ctrl.Calls())

	require.NoError(t, conn.WriteJSON(Command{Agent: "ghost", State: npc.StateIdle}))
	m = read(t, conn)
	assert.Equal(t, TypeError, m.Type)
	assert.Contains(t, m.Error, npc.ErrStaleReference.Error())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"agent":"g","state":"dancing"}`)))
	m = read(t, conn)
	assert.Equal(t, TypeError, m.Type)
	assert.True(t, strings.HasPrefix(m.Error, ErrInvalidMessage.Error()), m.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	m = read(t, conn)
	assert.Equal(t, TypeError, m.Type)

	assert.Len(t, ctrl.Calls(), 1, "rejected commands never reach the controller")
}

func TestWebSocketReadOnly(t *testing.T) {
	_, hub, u := feed(t, nil)
	conn := dial(t, hub, u)

	require.NoError(t, conn.WriteJSON(Command{Agent: "g", State: npc.StateIdle}))
	m := read(t, conn)
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, ErrReadOnly.Error(), m.Error)
}

func TestHTTPServerLifecycle(t *testing.T) {
	hub := NewHub(4, nil)
	srv := NewHTTPServer(Config{ListenAddr: "127.0.0.1:0"}, hub, nil, nil)
	assert.Empty(t, srv.Addr())
	assert.ErrorIs(t, srv.Stop(context.Background()), ErrServerNotRunning)

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyRunning)
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Zero(t, h.Clients)
	assert.NotEmpty(t, h.Uptime)

	missing, err := http.Get("http://" + srv.Addr() + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
