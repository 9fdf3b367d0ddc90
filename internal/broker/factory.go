package broker

import (
	"fmt"

	"parttrack/internal/config"
	"parttrack/internal/logger"
)

// TypeKafka is the only broker type currently implemented. The config
// validator rejects anything else before a service gets here, so the
// factory errors below only fire when the validator and this file drift.
const TypeKafka = "kafka"

// NewProducer builds the producer selected by broker.type.
func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case TypeKafka:
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// NewConsumer builds the consumer selected by broker.type.
func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case TypeKafka:
		return NewKafkaConsumer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
