package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"dermascan-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)
	return hub
}

func TestHub_SendReachesEveryDevice(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()

	phone := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 1)}
	laptop := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 1)}
	stranger := &Client{Hub: hub, UserID: uuid.New(), Send: make(chan []byte, 1)}
	hub.register <- phone
	hub.register <- laptop
	hub.register <- stranger

	require.Eventually(t, func() bool { return hub.ConnectedDevices(userID) == 2 }, time.Second, 5*time.Millisecond)

	hub.Send(context.Background(), userID, Notification{Type: "analysis.saved", Data: map[string]string{"id": "a1"}})

	for _, c := range []*Client{phone, laptop} {
		select {
		case raw := <-c.Send:
			var got Notification
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, "analysis.saved", got.Type)
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	}
	assert.Len(t, stranger.Send, 0)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := &Client{Hub: hub, UserID: uuid.New(), Send: make(chan []byte, 1)}

	hub.register <- c
	hub.unregister <- c

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Equal(t, 0, hub.ConnectedDevices(c.UserID))
}
