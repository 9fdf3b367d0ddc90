package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"parttrack/internal/broker"
	"parttrack/internal/config"
	"parttrack/internal/logger"
)

// Base carries what every service binary starts from: the parsed
// configuration, the process logger and the broker connections the event
// publishers and consumers are wired onto during startup.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBroker connects the shared producer and consumer. The service name
// labels the consumer's logs and metrics so events can be traced back to
// the binary that handled them.
func (b *Base) InitBroker(serviceName string) error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		producer.Close()
		return fmt.Errorf("create consumer: %w", err)
	}
	consumer.SetServiceName(serviceName)

	b.Producer = producer
	b.Consumer = consumer
	return nil
}

// Shutdown closes the broker connections and runs the service-specific
// teardown, collecting every error instead of stopping at the first one.
func (b *Base) Shutdown(ctx context.Context, serviceShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error
	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer: %w", err))
		}
	}
	if serviceShutdown != nil {
		errs = append(errs, serviceShutdown(ctx)...)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
