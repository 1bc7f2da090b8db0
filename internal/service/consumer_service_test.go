package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"dermascan-be/internal/pkg/logger"
	"dermascan-be/internal/websocket"
	"dermascan-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[uuid.UUID][]websocket.Notification
}

func (n *recordingNotifier) Send(_ context.Context, userID uuid.UUID, notification websocket.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[uuid.UUID][]websocket.Notification)
	}
	n.sent[userID] = append(n.sent[userID], notification)
}

func (n *recordingNotifier) count(userID uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[userID])
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func TestConsumerService_FanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	notifier := &recordingNotifier{}
	bus := &recordingBus{}
	consumer := NewConsumerService(pubSub, "ANALYSIS_SAVED", notifier, bus, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	userID := uuid.New()
	payload, err := json.Marshal(events.AnalysisSaved{AnalysisID: uuid.New(), UserID: userID, Diagnosis: "Eczema", CreatedAt: time.Now()})
	require.NoError(t, err)

	publisher := NewPublisherService("ANALYSIS_SAVED", pubSub)
	require.NoError(t, publisher.Publish(ctx, []byte("not json")))
	require.NoError(t, publisher.Publish(ctx, payload))

	assert.Eventually(t, func() bool {
		return notifier.count(userID) == 1 && bus.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	got := notifier.sent[userID][0]
	notifier.mu.Unlock()
	assert.Equal(t, NotificationAnalysisSaved, got.Type)
	data, ok := got.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Eczema", data["diagnosis"])
}

func TestConsumerService_NilBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	notifier := &recordingNotifier{}
	require.NoError(t, NewConsumerService(pubSub, "topic", notifier, nil, logger.NewNopLogger()).Consume(ctx))

	userID := uuid.New()
	payload, _ := json.Marshal(events.AnalysisSaved{AnalysisID: uuid.New(), UserID: userID})
	require.NoError(t, NewPublisherService("topic", pubSub).Publish(ctx, payload))

	assert.Eventually(t, func() bool { return notifier.count(userID) == 1 }, 2*time.Second, 10*time.Millisecond)
}
