package kafka

import (
	"context"
	"log"

	"github.com/BRO3886/searchsync/internal/queue"
	"github.com/IBM/sarama"
)

type kafkaEnqueuer struct {
	syncProducer  sarama.SyncProducer
	asyncProducer sarama.AsyncProducer
	cfg           *Config
}

// NewEnqueuer builds a producer matching the configured mode: a sync
// producer when WithSyncProducer was set, otherwise an async one.
func NewEnqueuer(ctx context.Context, c *Config) (queue.Enqueuer, error) {
	k := &kafkaEnqueuer{cfg: c}

	var err error
	if c.IsSync() {
		k.syncProducer, err = sarama.NewSyncProducer(c.GetBrokers(), c.GetConfig())
	} else {
		k.asyncProducer, err = sarama.NewAsyncProducer(c.GetBrokers(), c.GetConfig())
	}
	if err != nil {
		return nil, err
	}

	return k, nil
}

func (k *kafkaEnqueuer) Enqueue(ctx context.Context, topic string, data []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if k.cfg.IsSync() {
		partition, offset, err := k.syncProducer.SendMessage(msg)
		if err != nil {
			return err
		}
		log.Printf("[kafka] [%s] message sent to partition %d with offset %d", msg.Topic, partition, offset)
		return nil
	}

	select {
	case k.asyncProducer.Input() <- msg:
		return nil
	case err := <-k.asyncProducer.Errors():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *kafkaEnqueuer) Close() error {
	if k.syncProducer != nil {
		if err := k.syncProducer.Close(); err != nil {
			return err
		}
	}
	if k.asyncProducer != nil {
		if err := k.asyncProducer.Close(); err != nil {
			return err
		}
	}
	return nil
}
