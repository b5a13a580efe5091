package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// messageWriter 是 KafkaSink 用到的 *kafka.Writer 方法子集。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink 把运行摘要以 JSON 发送到 Kafka，消息键为运行 ID。
type KafkaSink struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewKafkaSink 创建写入 cfg.Topic 的 writer。主题不存在时由 broker 自动创建。
func NewKafkaSink(cfg config.KafkaConfig, log *logger.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSink(writer, cfg.Topic, log)
}

func newKafkaSink(w messageWriter, topic string, log *logger.Logger) *KafkaSink {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaSink{writer: w, topic: topic, log: log.Named("kafka")}
}

// Name 实现 Sink。
func (k *KafkaSink) Name() string { return "kafka" }

// Publish 将运行摘要序列化为 JSON 并发送。
func (k *KafkaSink) Publish(ctx context.Context, art *Artifact) error {
	data, err := json.Marshal(art.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(art.RunID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to write message to kafka topic %s: %w", k.topic, err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
