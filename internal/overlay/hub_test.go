package overlay

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayyybubu/RoD/internal/game"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestGame(t *testing.T) *game.Game {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.AutoReveal = false
	return game.New(cfg, game.WithClock(quartz.NewMock(t)), game.WithLogger(testLogger()))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func waitForConnections(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Connections() == n },
		2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	hub := NewHub(":0", newTestGame(t), testLogger())
	rec := httptest.NewRecorder()
	hub.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSnapshotEndpoint(t *testing.T) {
	g := newTestGame(t)
	require.True(t, g.StartGame(4))
	g.HandleCommand("<alice>", "!join")

	hub := NewHub(":0", g, testLogger())
	rec := httptest.NewRecorder()
	hub.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		Phase       string `json:"phase"`
		PlayerLimit int    `json:"player_limit"`
		Players     []struct {
			Name string `json:"name"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "joining", snap.Phase)
	assert.Equal(t, 4, snap.PlayerLimit)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "&lt;alice&gt;", snap.Players[0].Name)
}

func TestOverlayReceivesSnapshotThenEvents(t *testing.T) {
	g := newTestGame(t)
	hub := NewHub(":0", g, testLogger())
	g.Subscribe(hub)

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ws := dial(t, srv)
	snap := readMessage(t, ws)
	assert.Equal(t, MessageTypeSnapshot, snap.Type)
	waitForConnections(t, hub, 1)

	require.True(t, g.StartGame(0))

	var types []string
	for len(types) < 3 {
		types = append(types, readMessage(t, ws).Type)
	}
	assert.Equal(t, []string{
		string(game.EventTypeGameStarted),
		string(game.EventTypePhaseChanged),
		string(game.EventTypeLog),
	}, types)
}

func TestBroadcastReachesEveryOverlay(t *testing.T) {
	hub := NewHub(":0", newTestGame(t), testLogger())
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	readMessage(t, a)
	readMessage(t, b)
	waitForConnections(t, hub, 2)

	hub.OnEvent(game.LogEvent{Header: game.Header{GameID: "dmt_x"}, Text: "hello"})
	for _, ws := range []*websocket.Conn{a, b} {
		msg := readMessage(t, ws)
		assert.Equal(t, "log", msg.Type)
		var data game.LogEvent
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "hello", data.Text)
		assert.Equal(t, "dmt_x", data.GameID)
	}

	require.NoError(t, a.Close())
	waitForConnections(t, hub, 1)
}

func TestServeAndShutdown(t *testing.T) {
	hub := NewHub("127.0.0.1:0", newTestGame(t), testLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.ServeListener(ctx, ln) }()

	wsURL := "ws://" + ln.Addr().String() + "/ws"
	var ws *websocket.Conn
	require.Eventually(t, func() bool {
		ws, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer ws.Close()
	readMessage(t, ws)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// The overlay is told to go away.
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.ErrorIs(t, hub.Serve(context.Background()), ErrHubClosed)
}
