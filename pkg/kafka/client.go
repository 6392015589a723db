// Package kafka 提供了向 Kafka 发布文档生命周期事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/model"
	"pai-policy-qa/pkg/log"
)

// EventPublisher 发布文档生命周期事件。
type EventPublisher interface {
	Publish(ctx context.Context, event model.DocumentEvent) error
	Close() error
}

// messageWriter 是 *kafka.Writer 中用到的方法。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
}

// NewPublisher 创建 Kafka 生产者。Brokers 为空时返回不做任何事的发布者。
func NewPublisher(cfg config.KafkaConfig) EventPublisher {
	if cfg.Brokers == "" {
		return NopPublisher{}
	}
	brokers := strings.Split(cfg.Brokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &kafkaPublisher{writer: w}
}

// Publish 以 doc_id 为消息键发送事件，同一文档的事件落在同一分区。
func (p *kafkaPublisher) Publish(ctx context.Context, event model.DocumentEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DocID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Event)},
		},
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 丢弃所有事件。
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.DocumentEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
