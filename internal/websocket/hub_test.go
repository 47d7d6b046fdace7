package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/melkor648/apple-e-commerce/internal/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func startHub(t *testing.T, allowedOrigins []string) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	hub := NewHub(allowedOrigins, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server, cancel
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestHub_BroadcastsOrderPlaced(t *testing.T) {
	hub, server, _ := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	err = hub.HandleOrderPlaced(context.Background(), events.OrderPlacedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
		Total:   42.5,
		Status:  "Pending",
	})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var message struct {
		Type   string                  `json:"type"`
		Source string                  `json:"source"`
		Data   events.OrderPlacedEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &message))
	assert.Equal(t, MessageTypeOrderPlaced, message.Type)
	assert.Equal(t, "order-feed", message.Source)
	assert.Equal(t, "order-1", message.Data.OrderID)
	assert.Equal(t, 42.5, message.Data.Total)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, server, _ := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, server, cancel := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	_, server, _ := startHub(t, []string{"https://shop.example.com"})

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://shop.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	require.NoError(t, err)
	conn.Close()
}
