package kafka

import (
	"context"

	"github.com/IBM/sarama"
)

// SaramaProducer publishes through an IBM/sarama sync producer.
type SaramaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaProducer(cfg Config) (*SaramaProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = saramaAcks(cfg.Acks)
	sc.Producer.Retry.Max = 5
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return WrapSyncProducer(producer, cfg.Topic), nil
}

func saramaAcks(acks string) sarama.RequiredAcks {
	switch acks {
	case AcksOne:
		return sarama.WaitForLocal
	case AcksNone:
		return sarama.NoResponse
	default:
		return sarama.WaitForAll
	}
}

// WrapSyncProducer adapts an existing producer, e.g. sarama's mocks.
func WrapSyncProducer(p sarama.SyncProducer, topic string) *SaramaProducer {
	return &SaramaProducer{producer: p, topic: topic}
}

// Publish sends one message. The sync producer does not take a
// context; ctx is only checked before sending.
func (p *SaramaProducer) Publish(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

func (p *SaramaProducer) Close() error {
	return p.producer.Close()
}
