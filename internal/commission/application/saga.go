package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/contextx"
)

// ChargingSaga 收费 saga：消费“已计算”事件，对账本行执行守卫迁移
// Initiated → Calculated，并在同一事务内把出站余额变动命令写入 outbox。
// 事件重复投递时守卫返回空操作，出站副作用恰好发生一次。
type ChargingSaga struct {
	operations domain.OperationRepository
	publisher  domain.EventPublisher
	logger     *slog.Logger
}

// NewChargingSaga 创建收费 saga。
func NewChargingSaga(operations domain.OperationRepository, publisher domain.EventPublisher, logger *slog.Logger) *ChargingSaga {
	return &ChargingSaga{
		operations: operations,
		publisher:  publisher,
		logger:     logger.With("service", "commission_saga"),
	}
}

// HandleCalculated 处理一条“已计算”事件。name 是事件所属工作流的账本名称。
// 账本行缺失是致命错误：该行必须在命令处理阶段创建，事件先于它出现说明阶段次序被破坏。
func (s *ChargingSaga) HandleCalculated(ctx context.Context, name string, ev domain.CommissionCalculatedEvent) error {
	info, err := s.operations.Get(ctx, name, ev.OperationID)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: %s/%s (calculated event arrived before command stage)",
			domain.ErrExecutionNotFound, name, ev.OperationID)
	}

	applied, err := info.SwitchState(domain.StateInitiated, domain.StateCalculated)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.InfoContext(ctx, "calculated event already processed",
			"operation_name", name, "operation_id", ev.OperationID, "state", info.State.String())
		return nil
	}

	cmd := domain.ChangeBalanceCommand{
		OperationID:   ev.OperationID,
		AccountID:     ev.AccountID,
		Amount:        ev.Amount,
		ReasonType:    ev.ReasonType,
		Reason:        ev.Reason,
		EventSourceID: ev.SourceID,
		RequestedAt:   time.Now().UTC(),
	}

	// 先持久化状态、同事务落 outbox；乐观锁冲突让整次处理失败并重投递,
	// 重试会从新鲜读取重新评估守卫
	return s.operations.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.operations.Save(txCtx, info); err != nil {
			return err
		}
		return s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.TopicBalanceChangeCommand, ev.AccountID, cmd)
	})
}
