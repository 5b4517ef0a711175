package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels shared between the API server and the delivery worker.
const (
	ChannelWorkerEvents  = "worker.events"
	ChannelEventActivity = "event.activity"
)

// TypeEventCreated marks an event-creation message on the activity channel.
const TypeEventCreated = "event.created"

// Message is the envelope published on a broker channel
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
