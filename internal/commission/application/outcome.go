package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/commission/internal/commission/domain"
)

// OutcomeService 消费外部账户服务的余额变动回执：
// 把对应账本行推进到终态，并把结果喂给所属批次的完成度跟踪器。
type OutcomeService struct {
	operations domain.OperationRepository
	aggregate  *AggregateTracker
	barrier    *BarrierTracker
	logger     *slog.Logger
}

// NewOutcomeService 创建回执处理器。
func NewOutcomeService(
	operations domain.OperationRepository,
	aggregate *AggregateTracker,
	barrier *BarrierTracker,
	logger *slog.Logger,
) *OutcomeService {
	return &OutcomeService{
		operations: operations,
		aggregate:  aggregate,
		barrier:    barrier,
		logger:     logger.With("service", "commission_outcome"),
	}
}

// HandleBalanceChanged 处理“余额变动成功”回执。
func (s *OutcomeService) HandleBalanceChanged(ctx context.Context, ev domain.BalanceChangeResultEvent) error {
	return s.handleResult(ctx, ev, true)
}

// HandleBalanceRejected 处理“余额变动被拒”回执。
func (s *OutcomeService) HandleBalanceRejected(ctx context.Context, ev domain.BalanceChangeResultEvent) error {
	return s.handleResult(ctx, ev, false)
}

func (s *OutcomeService) handleResult(ctx context.Context, ev domain.BalanceChangeResultEvent, succeeded bool) error {
	name, ok := domain.OperationNameForReason(ev.ReasonType)
	if !ok {
		// 回执主题是平台共享的，其他服务发起的变动不归这里管
		return nil
	}

	info, err := s.operations.Get(ctx, name, ev.OperationID)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: %s/%s (confirmation for unknown operation)",
			domain.ErrExecutionNotFound, name, ev.OperationID)
	}

	target := domain.StateSucceeded
	if !succeeded {
		target = domain.StateFailed
	}
	// 回执抢在 saga 持久化之前到达时返回可重试错误，等重投递
	applied, err := info.SwitchState(domain.StateCalculated, target)
	if err != nil {
		return err
	}
	if applied {
		if err := s.operations.Save(ctx, info); err != nil {
			return err
		}
	}

	// 终态落库后仍要驱动跟踪器：上次处理可能在这一步之前崩溃，
	// 两种跟踪器的标记/确认本身都幂等
	switch ev.ReasonType {
	case domain.ReasonSwap:
		data, err := domain.UnmarshalChargeData(info.Data)
		if err != nil {
			return err
		}
		if data.ParentID == "" {
			s.logger.WarnContext(ctx, "swap confirmation without parent operation",
				"operation_id", ev.OperationID)
			return nil
		}
		return s.aggregate.HandleOutcome(ctx, data.ParentID, data.SourceID, succeeded)
	case domain.ReasonDailyPnl:
		if succeeded {
			s.barrier.Confirm(ev.OperationID)
		}
		return nil
	default:
		// 单笔工作流到达终态即结束
		return nil
	}
}
