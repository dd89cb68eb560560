package kafka

import (
	"Friday/backend/go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ExecutionPublisher 把已完成的任务执行记录发送到 Kafka，供审计和离线统计使用。
type ExecutionPublisher struct {
	writer *kafka.Writer
}

// NewExecutionPublisher 创建一个写入 topic 的发布者。
func NewExecutionPublisher(client *KafkaClient, topic string) *ExecutionPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(client.Config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return &ExecutionPublisher{writer: writer}
}

// PublishExecution 将 ExecutionRecord 序列化为 JSON，以 execution_id 为 key 发送。
func (p *ExecutionPublisher) PublishExecution(ctx context.Context, rec models.ExecutionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.ExecutionID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *ExecutionPublisher) Close() error {
	return p.writer.Close()
}
