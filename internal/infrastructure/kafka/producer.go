package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers []string
	Topic   string
	// BatchTimeout bounds how long the writer holds a partial batch.
	BatchTimeout time.Duration
}

// Producer writes the applied-delta feed. Messages are hashed by key, so all
// deltas of one kind land on one partition in apply order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w}
}

func (p *Producer) SendMessage(ctx context.Context, key, value []byte) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Time: time.Now().UTC()}); err != nil {
		return fmt.Errorf("write %s message: %w", p.writer.Topic, err)
	}
	return nil
}

func (p *Producer) Topic() string {
	return p.writer.Topic
}

// Written reports how many messages the writer delivered since the previous
// call.
func (p *Producer) Written() int64 {
	return p.writer.Stats().Messages
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
