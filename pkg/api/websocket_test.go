package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/kartexhq/kartex/pkg/broadcast"
)

func TestWebSocketSendsConnectedThenBroadcastMessages(t *testing.T) {
	_, deps := newTestRouter(t)
	router := NewRouter(deps)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected wsFrame
	require.NoError(t, conn.ReadJSON(&connected))
	require.Equal(t, "connected", connected.Type)

	deps.Broadcaster.Publish(broadcast.LogMessage(map[string]string{"message": "hello"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var logFrame wsFrame
	require.NoError(t, conn.ReadJSON(&logFrame))
	require.Equal(t, "log", logFrame.Type)
}
