package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OperationRepository 操作执行账本仓储。
type OperationRepository interface {
	// GetOrAdd 原子地插入或读取账本行。行不存在时用 factory 构造并插入；
	// 已存在（含并发插入竞争中落败）时返回先写者的行，existed=true。
	GetOrAdd(ctx context.Context, name, id string, factory func() *OperationExecution) (info *OperationExecution, existed bool, err error)

	// Get 读取账本行，不存在时返回 (nil, nil)。
	Get(ctx context.Context, name, id string) (*OperationExecution, error)

	// Save 带乐观并发控制的持久化：以调用方读取时的 LastModified 为条件。
	// 令牌失配返回 ErrConcurrentModification（可重试），行缺失返回 ErrExecutionNotFound（致命）。
	Save(ctx context.Context, info *OperationExecution) error

	// WithTx 在一个数据库事务中执行 fn，事务经 context 传递给仓储与 outbox。
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SwapChargeRepository 隔夜利息逐仓扣费行仓储。
type SwapChargeRepository interface {
	// CreatePending 批量创建未处理扣费行，重复创建（命令重投递）静默跳过。
	CreatePending(ctx context.Context, charges []*SwapCharge) error

	// MarkOutcome 仅在 WasCharged 尚未设置时写入结果，返回受影响行数。
	// 重复标记影响 0 行，不会重复计数。
	MarkOutcome(ctx context.Context, operationID, positionID string, succeeded bool) (int64, error)

	// GetBatchState 对父操作下全部扣费行做只读聚合统计。
	GetBatchState(ctx context.Context, operationID string) (BatchState, error)

	// List 返回父操作下全部扣费行。
	List(ctx context.Context, operationID string) ([]*SwapCharge, error)
}

// RateProvider 费率参考数据边界（外部协作方，本服务只读）。
type RateProvider interface {
	CommissionRate(ctx context.Context, instrument string) (CommissionRate, error)
	SwapRate(ctx context.Context, instrument string) (decimal.Decimal, error)
	OnBehalfFee(ctx context.Context) (decimal.Decimal, error)
}

// EventPublisher 出站事件端口。
type EventPublisher interface {
	// Publish 直接发布（非事务路径，尽力而为）。
	Publish(ctx context.Context, topic, key string, event any) error
	// PublishInTx 在给定数据库事务内写入 outbox，随账本变更一起提交。
	PublishInTx(ctx context.Context, tx any, topic, key string, event any) error
}
