package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type PubSub interface {
	message.Publisher
	message.Subscriber
}

// EventBus fans lifecycle events out to statistics, notification, and
// logging consumers. The engine never calls consumers directly.
type EventBus struct {
	pubSub PubSub
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewEventBus creates an in-process event bus.
func NewEventBus() (*EventBus, error) {
	logger := watermill.NewStdLogger(false, false)

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
		},
		logger,
	)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	return &EventBus{
		pubSub: pubSub,
		router: router,
		logger: logger,
	}, nil
}

// Start runs the subscriber router until ctx is cancelled.
func (eb *EventBus) Start(ctx context.Context) error {
	go func() {
		if err := eb.router.Run(ctx); err != nil {
			eb.logger.Error("event router stopped", err, nil)
		}
	}()
	select {
	case <-eb.router.Running():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the router and the underlying pub/sub.
func (eb *EventBus) Stop() error {
	return eb.router.Close()
}

// Publish serializes data into an EventMessage and publishes it on the
// topic named after its inferred event type. Delivery is at-least-once
// from the engine's perspective.
func (eb *EventBus) Publish(ctx context.Context, source string, data any) error {
	eventType := inferEventType(data)

	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	eventMsg := &EventMessage{
		ID:        newEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      rawData,
	}
	payload, err := json.Marshal(eventMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := eb.pubSub.Publish(string(eventType), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// SubscribeAsync registers a handler for one event type. Handlers must be
// registered before Start.
func (eb *EventBus) SubscribeAsync(eventType EventType, handlerName string, handler func(msg *EventMessage) error) {
	eb.router.AddNoPublisherHandler(
		handlerName,
		string(eventType),
		eb.pubSub,
		func(msg *message.Message) error {
			var eventMsg EventMessage
			if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
				return fmt.Errorf("failed to unmarshal event message: %w", err)
			}
			return handler(&eventMsg)
		},
	)
}

// SubscribeTyped registers a handler that receives decoded payloads.
func SubscribeTyped[T any](eb *EventBus, eventType EventType, handlerName string, handler func(ctx context.Context, event *Event[T]) error) {
	eb.router.AddNoPublisherHandler(
		handlerName,
		string(eventType),
		eb.pubSub,
		func(msg *message.Message) error {
			var eventMsg EventMessage
			if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
				return fmt.Errorf("failed to unmarshal event message: %w", err)
			}
			var data T
			if err := json.Unmarshal(eventMsg.Data, &data); err != nil {
				return fmt.Errorf("failed to unmarshal event data: %w", err)
			}
			return handler(msg.Context(), &Event[T]{
				ID:        eventMsg.ID,
				Timestamp: eventMsg.Timestamp,
				Source:    eventMsg.Source,
				Data:      data,
			})
		},
	)
}
