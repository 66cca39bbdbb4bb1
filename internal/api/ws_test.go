package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airalert-service/internal/logging"
	"airalert-service/internal/models"
)

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func newWSServer(t *testing.T, hub *Hub) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.New(t.TempDir(), "error")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws/events", hub.HandleWS(logger))
	srv := httptest.NewServer(r)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()
	srv, url := newWSServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.clientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(models.PipelineEvent{Type: models.EventSpike})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got models.PipelineEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventSpike, got.Type)
}

// A subscriber that stops reading must not stall Publish: once its write
// deadline expires, it is dropped and publishing carries on.
func TestHubPublish_DropsStalledClient(t *testing.T) {
	hub := NewHub()
	hub.writeWait = 50 * time.Millisecond
	srv, url := newWSServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.clientCount() == 1 },
		time.Second, 10*time.Millisecond)

	// The client never reads. Large payloads fill the socket buffers
	// within a few writes; each Publish blocks at most writeWait.
	event := models.PipelineEvent{Type: "noise", Payload: strings.Repeat("x", 1<<20)}
	deadline := time.Now().Add(5 * time.Second)
	for hub.clientCount() > 0 && time.Now().Before(deadline) {
		hub.Publish(event)
	}

	assert.Zero(t, hub.clientCount(), "stalled client was not dropped")
}

func TestHubPublish_RemovesClosedClient(t *testing.T) {
	hub := NewHub()
	srv, url := newWSServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.clientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		hub.Publish(models.PipelineEvent{Type: models.EventRunCompleted})
		return hub.clientCount() == 0
	}, time.Second, 10*time.Millisecond)
}
