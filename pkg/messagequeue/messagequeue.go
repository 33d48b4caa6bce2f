package messagequeue

import "context"

// Handler processes one message. A returned error rejects the message.
type Handler func(ctx context.Context, body []byte) error

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
	PublishJSON(ctx context.Context, queueName string, v interface{}) error
	// Consume blocks, dispatching messages to handler until ctx is cancelled.
	Consume(ctx context.Context, queueName string, handler Handler) error
	Close() error
}
