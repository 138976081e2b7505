package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
)

// OutboxEventPublisher 事务性事件发布者。
// 事件随账本变更在同一事务内写入 outbox 表，由后台 processor 轮询推送到
// kafka：账本行提交成功则事件必达，账本回滚则事件一并消失。
// 收费链路上所有“已计算”事件与出站余额变动命令都走这条路径。
type OutboxEventPublisher struct {
	manager *outbox.Manager
}

// NewOutboxPublisher 创建基于 outbox 模式的事件发布者。
func NewOutboxPublisher(manager *outbox.Manager) domain.EventPublisher {
	return &OutboxEventPublisher{manager: manager}
}

// Publish 非事务路径：事件单独入队，仍享有 outbox 的重试与投递保障。
func (p *OutboxEventPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	if err := p.manager.PublishInTx(ctx, p.manager.DB(), topic, key, event); err != nil {
		return fmt.Errorf("failed to enqueue outbox event for %s: %w", topic, err)
	}
	return nil
}

// PublishInTx 在给定数据库事务内入队，随账本变更一起提交或回滚。
func (p *OutboxEventPublisher) PublishInTx(ctx context.Context, tx any, topic, key string, event any) error {
	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return fmt.Errorf("outbox publish for %s requires a *gorm.DB transaction, got %T", topic, tx)
	}
	if err := p.manager.PublishInTx(ctx, gormTx, topic, key, event); err != nil {
		return fmt.Errorf("failed to enqueue outbox event for %s: %w", topic, err)
	}
	return nil
}
