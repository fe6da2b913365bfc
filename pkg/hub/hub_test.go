package hub

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attach registers a connection-less client so tests can observe its queue.
func attach(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, buffer)}
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
	return c
}

func startHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	t.Cleanup(cancel)
	return cancel
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	h := New("test")
	startHub(t, h)

	c := attach(t, h, 4)
	require.NoError(t, h.BroadcastJSON(map[string]int{"faces": 2}))

	select {
	case msg := <-c.send:
		assert.Equal(t, JSONMessage, msg.Type)
		assert.JSONEq(t, `{"faces":2}`, string(msg.Data))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestHub_BinaryMessage(t *testing.T) {
	h := New("video")
	startHub(t, h)

	c := attach(t, h, 1)
	h.BroadcastBinary([]byte{0xff, 0xd8})

	select {
	case msg := <-c.send:
		assert.Equal(t, BinaryMessage, msg.Type)
		assert.Equal(t, []byte{0xff, 0xd8}, msg.Data)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestHub_DropsSlowResultClient(t *testing.T) {
	h := New("faces", WithClientBuffer(1))
	startHub(t, h)

	attach(t, h, 1)
	require.NoError(t, h.BroadcastJSON(map[string]int{"seq": 1}))
	require.NoError(t, h.BroadcastJSON(map[string]int{"seq": 2}))

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_SlowVideoClientSkipsToLatestFrame(t *testing.T) {
	h := New("video", WithClientBuffer(1))
	startHub(t, h)

	c := attach(t, h, 1)
	for i := byte(1); i <= 5; i++ {
		h.BroadcastBinary([]byte{i})
	}

	// Older frames may be replaced, the newest never is.
	var last byte
	require.Eventually(t, func() bool {
		select {
		case msg := <-c.send:
			last = msg.Data[0]
		default:
		}
		return last == 5
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, h.ClientCount(), "video viewer must stay connected")
}

func TestClient_Offer(t *testing.T) {
	c := &Client{send: make(chan Message, 1)}

	require.True(t, c.offer(NewBinaryMessage([]byte{1})))
	require.True(t, c.offer(NewBinaryMessage([]byte{2})))
	assert.Equal(t, uint64(1), c.skipped)
	assert.Equal(t, []byte{2}, (<-c.send).Data)

	require.True(t, c.offer(NewJSONMessage([]byte(`{}`))))
	assert.False(t, c.offer(NewJSONMessage([]byte(`{}`))), "full result queue reports a slow client")
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("test")
	cancel := startHub(t, h)

	c := attach(t, h, 1)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	_, ok := <-c.send
	assert.False(t, ok, "client channel should be closed")
	assert.False(t, h.IsRunning())
	assert.Nil(t, NewClient(h, nil), "no registration after stop")
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.BroadcastBinary([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
	assert.Equal(t, uint64(300-256), h.Dropped())
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "json", JSONMessage.String())
	assert.Equal(t, "binary", BinaryMessage.String())
}

func TestMessage_FrameType(t *testing.T) {
	assert.Equal(t, websocket.TextMessage, NewJSONMessage(nil).frameType())
	assert.Equal(t, websocket.BinaryMessage, NewBinaryMessage(nil).frameType())
}
