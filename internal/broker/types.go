package broker

import (
	"context"
)

type Producer interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc receives the raw message value. Each consumer owns the
// decoding of its topic's event type.
type HandlerFunc func(ctx context.Context, key string, value []byte) error
