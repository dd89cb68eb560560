package kafka

import (
	"Friday/backend/go/internal/config"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaClient 持有 Kafka 管理连接和 broker 配置。
type KafkaClient struct {
	Conn   *kafka.Conn // 用于管理的连接
	Config *config.KafkaConfig
}

var (
	client  *KafkaClient
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 KafkaClient 实例。
// 首次调用时，它会连接到 Kafka 并创建配置中缺失的主题。
func GetClient(cfg *config.KafkaConfig) (*KafkaClient, error) {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("未配置 Kafka brokers")
			return
		}

		dialer := &kafka.Dialer{Timeout: 10 * time.Second}
		conn, err := dialer.DialContext(context.Background(), "tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("kafka 初始化连接失败: %w", err)
			return
		}

		if err = ensureTopics(conn, cfg.Topics); err != nil {
			initErr = err
			conn.Close()
			return
		}

		log.Println("✅ 成功初始化 Kafka 客户端!")
		client = &KafkaClient{Conn: conn, Config: cfg}
	})

	return client, initErr
}

func ensureTopics(conn *kafka.Conn, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
	}
	existing := make(map[string]struct{})
	for _, p := range partitions {
		existing[p.Topic] = struct{}{}
	}

	var missing []kafka.TopicConfig
	for _, name := range topics {
		if _, ok := existing[name]; !ok {
			missing = append(missing, kafka.TopicConfig{Topic: name, NumPartitions: 1, ReplicationFactor: 1})
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err = conn.CreateTopics(missing...); err != nil {
		return fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
	}
	log.Printf("成功创建 %d 个 Kafka 主题。", len(missing))
	return nil
}

// Close 关闭管理连接。
func (c *KafkaClient) Close() error {
	if c == nil || c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// HealthCheck 检查 Kafka 连接的健康状况。
func (c *KafkaClient) HealthCheck(ctx context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("kafka 客户端未初始化，无法进行健康检查")
	}
	_, err := c.Conn.Controller()
	return err
}
