package service

import (
	"context"

	"kbchat-be/internal/pkg/logger"
	"kbchat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventSink receives events relayed off the in-process bus, e.g. a NATS publisher.
type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	sink       EventSink // nil means log only
	logger     logger.ILogger
}

func NewConsumerService(subscriber message.Subscriber, topicName string, sink EventSink, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		sink:       sink,
		logger:     log,
	}
}

// Consume starts relaying in the background and returns once subscribed.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
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
	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		cs.logger.Error("EVENTS", "Failed to decode event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // undecodable, retrying will not help
		return
	}

	cs.logger.Info("EVENTS", event.Type, event.Data)

	if cs.sink != nil {
		if err := cs.sink.Publish(ctx, event); err != nil {
			// Forwarding is best effort; the event is already logged.
			cs.logger.Warn("EVENTS", "Failed to forward event", map[string]interface{}{
				"event_type": event.Type,
				"error":      err.Error(),
			})
		}
	}
	msg.Ack()
}
