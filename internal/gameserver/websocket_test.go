package gameserver_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/duskfall/internal/config"
	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/gameserver"
)

func newTestServer(t *testing.T, f *handlerFixture) *httptest.Server {
	t.Helper()
	cfg := config.WebSocketConfig{
		Host:         "127.0.0.1",
		Port:         0,
		Path:         "/ws",
		WriteTimeout: time.Second,
		PingInterval: time.Minute,
		SendBuffer:   16,
	}
	ws := gameserver.NewWebSocketServer(cfg, f.sessions, f.worldMgr,
		gameserver.MemoryPlayerSource{StartRoomID: "ossuary"},
		f.combat, f.party, f.loot, zaptest.NewLogger(t))
	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, uid, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uid=" + uid + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) message.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg message.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_ConnectReceivesWelcome(t *testing.T) {
	f := newHandlerFixture(t)
	srv := newTestServer(t, f)

	conn := dialWS(t, srv, "p1", "Hero")

	msg := readMessage(t, conn)
	assert.Equal(t, message.KindSystem, msg.Kind)
	assert.Contains(t, msg.Text, "Welcome, Hero")
	assert.Contains(t, msg.Text, "Bone Ossuary")
}

func TestWebSocket_MissingUIDRejected(t *testing.T) {
	f := newHandlerFixture(t)
	srv := newTestServer(t, f)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_CommandErrorsReturnedAsSystemMessages(t *testing.T) {
	f := newHandlerFixture(t)
	srv := newTestServer(t, f)

	conn := dialWS(t, srv, "p1", "Hero")
	readMessage(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("flee")))
	msg := readMessage(t, conn)
	assert.Equal(t, message.KindSystem, msg.Kind)
	assert.Contains(t, msg.Text, "not in combat")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("dance")))
	msg = readMessage(t, conn)
	assert.Contains(t, msg.Text, "unknown command")
}

func TestWebSocket_AttackStartsCombat(t *testing.T) {
	f := newHandlerFixture(t)
	srv := newTestServer(t, f)
	f.spawnGhoul(t, "ossuary")

	conn := dialWS(t, srv, "p1", "Hero")
	readMessage(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("attack crypt ghoul")))
	msg := readMessage(t, conn)
	assert.Equal(t, message.KindJoin, msg.Kind)
	assert.True(t, f.engine.InCombat("p1"))
}

func TestWebSocket_RoomBroadcastReachesOtherOccupants(t *testing.T) {
	f := newHandlerFixture(t)
	srv := newTestServer(t, f)

	first := dialWS(t, srv, "p1", "Hero")
	readMessage(t, first) // welcome

	second := dialWS(t, srv, "p2", "Rogue")
	readMessage(t, second) // welcome

	// First occupant sees the second arrive.
	msg := readMessage(t, first)
	assert.Equal(t, message.KindMovement, msg.Kind)
	assert.Contains(t, msg.Text, "Rogue arrives")
}

func TestWebSocket_DuplicateUIDRefused(t *testing.T) {
	f := newHandlerFixture(t)
	srv := newTestServer(t, f)

	first := dialWS(t, srv, "p1", "Hero")
	readMessage(t, first) // welcome

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uid=p1&name=Imposter"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The server closes the duplicate immediately.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestWebSocket_DisconnectDetachesSession(t *testing.T) {
	f := newHandlerFixture(t)
	srv := newTestServer(t, f)

	conn := dialWS(t, srv, "p1", "Hero")
	readMessage(t, conn) // welcome
	require.Equal(t, 1, f.sessions.Count())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return f.sessions.Count() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
