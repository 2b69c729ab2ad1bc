package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-data/facetrack/internal/track"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, hub, 2)

	require.True(t, hub.Broadcast([]byte(`{"frame":1}`)))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"frame":1}`, string(msg))
	}
}

func TestHubClientDisconnect(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no clients still succeeds; the message just
	// reaches nobody.
	assert.True(t, hub.Broadcast([]byte("x")))
}

func TestPublisher(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	pub := NewPublisher(hub)
	views := []track.TrackView{{ID: 1, State: track.TrackConfirmed, Box: track.Box{X: 1, Y: 2, W: 3, H: 4}}}
	metrics := &track.Metrics{ActiveTracks: 1, ConfirmedTracks: 1}

	pub.Publish(0, views, metrics) // frame 0: metrics included
	pub.Publish(1, views, metrics) // frame 1: metrics omitted

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var first FrameBundle
	require.NoError(t, json.Unmarshal(raw, &first))
	assert.Equal(t, int64(0), first.FrameIndex)
	require.Len(t, first.Tracks, 1)
	assert.Equal(t, int64(1), first.Tracks[0].ID)
	require.NotNil(t, first.Metrics)
	assert.Equal(t, 1, first.Metrics.ConfirmedTracks)

	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	var second FrameBundle
	require.NoError(t, json.Unmarshal(raw, &second))
	assert.Equal(t, int64(1), second.FrameIndex)
	assert.Nil(t, second.Metrics)

	published, dropped := pub.Stats()
	assert.Equal(t, uint64(2), published)
	assert.Equal(t, uint64(0), dropped)
}
