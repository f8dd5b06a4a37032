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

// Bus carries run lifecycle events from the orchestrator and harness to
// whoever renders them. It is an in-process pub/sub scoped to one CLI
// invocation.
type Bus struct {
	pubSub *gochannel.GoChannel
	router *message.Router
}

// NewBus creates a bus with an in-memory channel transport.
func NewBus() (*Bus, error) {
	logger := watermill.NopLogger{}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		logger,
	)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}

	return &Bus{pubSub: pubSub, router: router}, nil
}

// Start runs the router until the context is cancelled. It blocks; callers
// run it in its own goroutine and wait on Running before publishing.
func (b *Bus) Start(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once the router accepts messages.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}

// Stop closes the router and the underlying channels.
func (b *Bus) Stop() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubSub.Close()
}

// Publish sends one event; the topic is inferred from the payload type.
func (b *Bus) Publish(ctx context.Context, data any) error {
	eventType := typeOf(data)
	if eventType == "" {
		return fmt.Errorf("unknown event payload type %T", data)
	}

	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	payload, err := json.Marshal(&Message{
		ID:        NewID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      rawData,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(string(eventType), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe registers a handler for one event type. Must be called before
// Start.
func (b *Bus) Subscribe(eventType Type, handlerName string, handler func(msg *Message) error) {
	b.router.AddNoPublisherHandler(
		handlerName,
		string(eventType),
		b.pubSub,
		func(msg *message.Message) error {
			var eventMsg Message
			if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
				return fmt.Errorf("failed to unmarshal event message: %w", err)
			}
			return handler(&eventMsg)
		},
	)
}

// SubscribeTyped registers a handler receiving the decoded payload.
func SubscribeTyped[T any](b *Bus, eventType Type, handlerName string, handler func(data T) error) {
	b.Subscribe(eventType, handlerName, func(msg *Message) error {
		data, err := Decode[T](msg)
		if err != nil {
			return fmt.Errorf("failed to decode %s event: %w", eventType, err)
		}
		return handler(data)
	})
}
