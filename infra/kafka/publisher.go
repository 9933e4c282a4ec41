// Package kafka publishes registry events to a Kafka topic. Two
// drivers are available: segmentio/kafka-go (the default) and
// IBM/sarama.
package kafka

import (
	"context"
	"fmt"
	"time"
)

// Publisher delivers one keyed message.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

const (
	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// Acknowledgement levels a publish waits for.
const (
	AcksAll  = "all"
	AcksOne  = "one"
	AcksNone = "none"
)

// Config selects the driver and how writes are acknowledged.
type Config struct {
	Driver  string
	Brokers []string
	Topic   string
	// Acks is AcksAll, AcksOne or AcksNone. Empty means AcksAll.
	Acks string
	// BatchTimeout bounds how long kafka-go holds a partial batch.
	BatchTimeout time.Duration
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka: no topic configured")
	}
	switch c.Acks {
	case "", AcksAll, AcksOne, AcksNone:
		return nil
	default:
		return fmt.Errorf("kafka: unknown acks %q", c.Acks)
	}
}

// NewPublisher builds the publisher for cfg.Driver.
func NewPublisher(cfg Config) (Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case "", DriverKafkaGo:
		return NewProducer(cfg), nil
	case DriverSarama:
		p, err := NewSaramaProducer(cfg)
		if err != nil {
			return nil, fmt.Errorf("kafka: sarama producer: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("kafka: unknown driver %q", cfg.Driver)
	}
}
