package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
)

// KafkaEventPublisher 直连 kafka 的事件发布者，用于非事务路径
// （HTTP 层的启动命令、内存屏障的尽力而为汇总）。
type KafkaEventPublisher struct {
	producer *kafka.Producer
}

// NewKafkaEventPublisher 创建一个新的 KafkaEventPublisher 实例。
func NewKafkaEventPublisher(producer *kafka.Producer) domain.EventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", topic, err)
	}
	return p.producer.PublishToTopic(ctx, topic, []byte(key), payload)
}

// PublishInTx 该实现没有事务语义，退化为直接发布。
func (p *KafkaEventPublisher) PublishInTx(ctx context.Context, _ any, topic string, key string, event any) error {
	return p.Publish(ctx, topic, key, event)
}
