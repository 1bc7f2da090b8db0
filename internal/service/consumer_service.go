package service

import (
	"context"
	"encoding/json"

	"dermascan-be/internal/pkg/logger"
	"dermascan-be/internal/websocket"
	"dermascan-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const NotificationAnalysisSaved = "analysis.saved"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// Notifier pushes a notification to a user's open connections.
type Notifier interface {
	Send(ctx context.Context, userID uuid.UUID, notification websocket.Notification)
}

// EventPublisher forwards domain events to the external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	notifier  Notifier
	bus       EventPublisher
	logger    logger.ILogger
}

// NewConsumerService wires the analysis-saved topic to the websocket hub and,
// when bus is non-nil, to NATS.
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	notifier Notifier,
	bus EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		notifier:  notifier,
		bus:       bus,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var evt events.AnalysisSaved
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.notifier.Send(ctx, evt.UserID, websocket.Notification{
		Type: NotificationAnalysisSaved,
		Data: evt.Payload(),
	})

	if cs.bus != nil {
		if err := cs.bus.Publish(ctx, evt); err != nil {
			// Local delivery already happened; the bus copy is best effort.
			cs.logger.Warn("CONSUMER", "Failed to forward event to bus", map[string]interface{}{
				"analysis_id": evt.AnalysisID.String(),
				"error":       err.Error(),
			})
		}
	}

	cs.logger.Info("CONSUMER", "Analysis event processed", map[string]interface{}{
		"analysis_id": evt.AnalysisID.String(),
		"user_id":     evt.UserID.String(),
	})
	msg.Ack()
}
