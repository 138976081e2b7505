package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/contextx"
)

// AggregateTracker 聚合式完成度跟踪（隔夜利息批处理）。
// 每条回执把结果写进持久化的三态扣费行，再用只读聚合查询判断批次是否完成。
// 状态全部活在存储里，进程重启不丢进度；代价是每次标记后多一次查询。
// 汇总的“恰好一次”由父账本行的守卫迁移保证，并发标记者中只有一个能赢得
// Calculated → Succeeded 的条件写。
type AggregateTracker struct {
	operations  domain.OperationRepository
	swapCharges domain.SwapChargeRepository
	publisher   domain.EventPublisher
	logger      *slog.Logger
}

// NewAggregateTracker 创建聚合式完成度跟踪器。
func NewAggregateTracker(
	operations domain.OperationRepository,
	swapCharges domain.SwapChargeRepository,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *AggregateTracker {
	return &AggregateTracker{
		operations:  operations,
		swapCharges: swapCharges,
		publisher:   publisher,
		logger:      logger.With("service", "swap_aggregate_tracker"),
	}
}

// HandleOutcome 记录单仓扣费结果并检查批次完成度。
// 重复回执标记 0 行（幂等），完成检查依旧执行——崩溃后重投递的回执
// 可能是触发收尾的最后机会，守卫迁移保证不会因此重复发布汇总。
func (t *AggregateTracker) HandleOutcome(ctx context.Context, operationID, positionID string, succeeded bool) error {
	rows, err := t.swapCharges.MarkOutcome(ctx, operationID, positionID, succeeded)
	if err != nil {
		return err
	}
	if rows == 0 {
		t.logger.DebugContext(ctx, "duplicate swap outcome ignored",
			"operation_id", operationID, "position_id", positionID)
	}

	state, err := t.swapCharges.GetBatchState(ctx, operationID)
	if err != nil {
		return err
	}
	if !state.Complete() {
		return nil
	}
	return t.finalize(ctx, operationID, state)
}

func (t *AggregateTracker) finalize(ctx context.Context, operationID string, state domain.BatchState) error {
	parent, err := t.operations.Get(ctx, domain.OperationNameOvernightSwap, operationID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%w: %s/%s (batch complete but parent row missing)",
			domain.ErrExecutionNotFound, domain.OperationNameOvernightSwap, operationID)
	}

	// 派发尚未标记完成时返回可重试错误，回执重投递后再收尾
	applied, err := parent.SwitchState(domain.StateCalculated, domain.StateSucceeded)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	event := domain.ProcessCompletedEvent{
		OperationID: operationID,
		Total:       state.Total,
		Failed:      state.Failed,
		Timestamp:   time.Now().UTC(),
	}
	err = t.operations.WithTx(ctx, func(txCtx context.Context) error {
		if err := t.operations.Save(txCtx, parent); err != nil {
			return err
		}
		return t.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.TopicSwapProcessCompleted, operationID, event)
	})
	if err != nil {
		return err
	}

	t.logger.InfoContext(ctx, "swap process completed",
		"operation_id", operationID, "total", state.Total, "failed", state.Failed)
	return nil
}
