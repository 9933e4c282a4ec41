package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer publishes through a segmentio/kafka-go writer. Messages are
// hashed on their key, so every event of one account lands on the same
// partition in order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: requiredAcks(cfg.Acks),
	}
	if cfg.BatchTimeout > 0 {
		w.BatchTimeout = cfg.BatchTimeout
	}
	return &Producer{writer: w}
}

func requiredAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case AcksOne:
		return kafka.RequireOne
	case AcksNone:
		return kafka.RequireNone
	default:
		return kafka.RequireAll
	}
}

func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
