package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher keys every message by doctor id. The hash balancer maps a
// key to a fixed partition, which is what gives per-doctor ordering.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

var _ Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	key, value := Encode(msg)
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Time: time.Now().UTC()})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type KafkaConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// Workers is the number of group members in this process. Kafka assigns
	// each partition to exactly one of them.
	Workers int
	Retry   RetryPolicy
}

type KafkaConsumer struct {
	cfg    KafkaConsumerConfig
	logger zerolog.Logger
}

func NewKafkaConsumer(cfg KafkaConsumerConfig, logger zerolog.Logger) *KafkaConsumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &KafkaConsumer{cfg: cfg, logger: logger.With().Str("component", "kafka-consumer").Logger()}
}

var _ Consumer = (*KafkaConsumer)(nil)

func (c *KafkaConsumer) Run(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    c.cfg.Topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		})

		wg.Add(1)
		go func(worker int, reader *kafka.Reader) {
			defer wg.Done()
			c.consume(ctx, reader, h, c.logger.With().Int("worker", worker).Logger())
		}(i, reader)
	}
	wg.Wait()
	return nil
}

// consume commits a message only after the handler has finished with it,
// so a crash mid-adjudication leads to redelivery rather than loss.
func (c *KafkaConsumer) consume(ctx context.Context, reader *kafka.Reader, h Handler, logger zerolog.Logger) {
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing kafka reader")
		}
	}()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("kafka fetch error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		msg, err := Decode(m.Key, m.Value)
		if err != nil {
			logger.Error().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("dropping malformed message")
		} else if err := handleWithRetry(ctx, h, msg, c.cfg.Retry, logger); err != nil && ctx.Err() != nil {
			return
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Int64("offset", m.Offset).Msg("kafka commit error")
		}
	}
}
