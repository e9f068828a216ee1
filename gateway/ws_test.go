package gateway

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftcid/AutomatedHomeV2/state"
)

func startWSServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(state.NewStore(), Config{Addr: "127.0.0.1:0"}, nil)
	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(func() { s.Stop(time.Second) })
	return s
}

func TestWebsocket_ReceivesStateEvents(t *testing.T) {
	s := startWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws/state", nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait until the hub has registered the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, s.hub.count())

	s.OnStateChange("/kitchen/lamp/power", "1")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event stateEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "/kitchen/lamp/power", event.Topic)
	assert.Equal(t, "1", event.Value)
}

func TestWebsocket_DisconnectRemovesClient(t *testing.T) {
	s := startWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws/state", nil)
	require.NoError(t, err)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.count() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, s.hub.count())
}

func TestWebsocket_RejectsPlainHTTP(t *testing.T) {
	s := startWSServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/ws/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
