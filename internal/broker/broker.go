package broker

import "context"

// Handler processes one consumed message. A nil return acknowledges the
// message; a non-nil return terminates it without redelivery (poison
// messages must not loop).
type Handler func(ctx context.Context, data []byte) error

// ConsumeOptions bound how many messages may be in flight per subscription.
type ConsumeOptions struct {
	Concurrency int
}

type Subscription interface {
	// Drain stops delivery, letting in-flight handlers finish.
	Drain() error
}

// Channel is the messaging boundary the pipeline depends on. Connection
// lifecycle (reconnects, buffering) belongs to the implementation; the
// pipeline only requires EnsureConnected as a precondition and IsActive for
// health reporting.
type Channel interface {
	Publish(ctx context.Context, subject, key string, data []byte) error
	Consume(ctx context.Context, subject string, h Handler, opts ConsumeOptions) (Subscription, error)
	EnsureConnected(ctx context.Context) error
	IsActive() bool
	Close() error
}
