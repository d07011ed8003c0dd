package queue

import "context"

// Enqueuer publishes raw mutation events to a topic.
type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, data []byte) error
	Close() error
}

type MessageHandler func(ctx context.Context, data []byte) error

// Dequeuer consumes raw mutation events from a topic, invoking handler per
// message. A handler error stops consumption of the claim.
type Dequeuer interface {
	Dequeue(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}
