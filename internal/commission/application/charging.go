package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/contextx"
)

// ChargingService 收费命令处理器：订单佣金、代客操作费、隔夜利息批处理、每日盈亏批处理。
// 所有入站命令都是至少一次投递，处理依赖账本 GetOrAdd 幂等：
// 账本行与“已计算”事件在同一事务内落库，重复命令发现行已存在后直接丢弃。
type ChargingService struct {
	operations  domain.OperationRepository
	swapCharges domain.SwapChargeRepository
	rates       domain.RateProvider
	publisher   domain.EventPublisher
	barrier     *BarrierTracker
	logger      *slog.Logger
}

// NewChargingService 创建收费命令处理器。
func NewChargingService(
	operations domain.OperationRepository,
	swapCharges domain.SwapChargeRepository,
	rates domain.RateProvider,
	publisher domain.EventPublisher,
	barrier *BarrierTracker,
	logger *slog.Logger,
) *ChargingService {
	return &ChargingService{
		operations:  operations,
		swapCharges: swapCharges,
		rates:       rates,
		publisher:   publisher,
		barrier:     barrier,
		logger:      logger.With("service", "commission_charging"),
	}
}

// HandleOrderExecuted 处理订单成交收费命令。
func (s *ChargingService) HandleOrderExecuted(ctx context.Context, cmd domain.OrderExecutedCommand) error {
	rate, err := s.rates.CommissionRate(ctx, cmd.Instrument)
	if err != nil {
		return fmt.Errorf("failed to resolve commission rate for %s: %w", cmd.Instrument, err)
	}
	fee := domain.CalculateCommission(cmd.Volume, cmd.Price, rate)

	data := domain.ChargeData{
		AccountID:  cmd.AccountID,
		Instrument: cmd.Instrument,
		Amount:     fee.Neg(),
		Reason:     fmt.Sprintf("Commission for executed order %s", cmd.OrderID),
		ReasonType: domain.ReasonCommission,
		SourceID:   cmd.OrderID,
		CreatedAt:  cmd.CreatedAt,
	}
	return s.chargeOnce(ctx, domain.OperationNameOrderCommission, cmd.OperationID, data, domain.TopicOrderCommissionCalculated)
}

// HandleOnBehalfPerformed 处理代客操作收费命令。
func (s *ChargingService) HandleOnBehalfPerformed(ctx context.Context, cmd domain.OnBehalfPerformedCommand) error {
	feePerAction, err := s.rates.OnBehalfFee(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve on-behalf fee: %w", err)
	}
	fee := domain.CalculateOnBehalfFee(cmd.ActionsCount, feePerAction)

	data := domain.ChargeData{
		AccountID:  cmd.AccountID,
		Amount:     fee.Neg(),
		Reason:     fmt.Sprintf("On-behalf fee for order %s (%d actions)", cmd.OrderID, cmd.ActionsCount),
		ReasonType: domain.ReasonOnBehalfFee,
		SourceID:   cmd.OrderID,
		CreatedAt:  cmd.CreatedAt,
	}
	return s.chargeOnce(ctx, domain.OperationNameOnBehalfCommission, cmd.OperationID, data, domain.TopicOnBehalfCommissionCalculated)
}

// HandleSwapProcessStart 处理隔夜利息批处理启动命令。
// 父操作行标记批次存在，逐仓扣费行（三态）供聚合式完成度跟踪，
// 每个持仓派生一个子操作并发布各自的“已计算”事件。
func (s *ChargingService) HandleSwapProcessStart(ctx context.Context, cmd domain.StartSwapProcessCommand) error {
	if len(cmd.Positions) == 0 {
		s.logger.WarnContext(ctx, "swap process started with no positions", "operation_id", cmd.OperationID)
		return nil
	}

	// 费率解析在任何事务之外完成
	charges := make([]*domain.SwapCharge, 0, len(cmd.Positions))
	for _, p := range cmd.Positions {
		rate, err := s.rates.SwapRate(ctx, p.Instrument)
		if err != nil {
			return fmt.Errorf("failed to resolve swap rate for %s: %w", p.Instrument, err)
		}
		charges = append(charges, &domain.SwapCharge{
			OperationID: cmd.OperationID,
			PositionID:  p.PositionID,
			AccountID:   p.AccountID,
			Instrument:  p.Instrument,
			Volume:      p.Volume,
			ClosePrice:  p.ClosePrice,
			SwapRate:    rate,
			Amount:      domain.CalculateOvernightSwap(p.Volume, p.ClosePrice, rate),
		})
	}

	parentData := domain.ChargeData{
		Reason:     fmt.Sprintf("Overnight swap process for %d positions", len(cmd.Positions)),
		ReasonType: domain.ReasonSwap,
		CreatedAt:  cmd.CreatedAt,
	}
	payload, err := parentData.Marshal()
	if err != nil {
		return err
	}

	var dispatched bool
	err = s.operations.WithTx(ctx, func(txCtx context.Context) error {
		parent, _, err := s.operations.GetOrAdd(txCtx, domain.OperationNameOvernightSwap, cmd.OperationID, func() *domain.OperationExecution {
			return domain.NewOperationExecution(domain.OperationNameOvernightSwap, cmd.OperationID, payload)
		})
		if err != nil {
			return err
		}
		if parent.State > domain.StateInitiated {
			dispatched = true
			return nil
		}
		return s.swapCharges.CreatePending(txCtx, charges)
	})
	if err != nil {
		return err
	}
	if dispatched {
		s.logger.InfoContext(ctx, "swap process already dispatched, command ignored", "operation_id", cmd.OperationID)
		return nil
	}

	// 逐仓子操作各自独立的小事务，中途崩溃后重投递由 GetOrAdd 去重续跑
	for _, c := range charges {
		subID := domain.SubOperationID(cmd.OperationID, c.PositionID)
		data := domain.ChargeData{
			AccountID:  c.AccountID,
			Instrument: c.Instrument,
			Amount:     c.Amount.Neg(),
			Reason:     fmt.Sprintf("Overnight swap for position %s", c.PositionID),
			ReasonType: domain.ReasonSwap,
			SourceID:   c.PositionID,
			ParentID:   cmd.OperationID,
			CreatedAt:  cmd.CreatedAt,
		}
		if err := s.chargeOnce(ctx, domain.OperationNameOvernightSwap, subID, data, domain.TopicSwapCommissionCalculated); err != nil {
			return err
		}
	}

	return s.markDispatched(ctx, domain.OperationNameOvernightSwap, cmd.OperationID)
}

// HandlePnlProcessStart 处理每日盈亏批处理启动命令。
// 子操作集合交给内存屏障跟踪；屏障状态随进程丢失，
// 对应的汇总是尽力而为的通知，不影响账本正确性。
func (s *ChargingService) HandlePnlProcessStart(ctx context.Context, cmd domain.StartPnlProcessCommand) error {
	if len(cmd.Accounts) == 0 {
		s.logger.WarnContext(ctx, "pnl process started with no accounts", "operation_id", cmd.OperationID)
		return nil
	}

	parentData := domain.ChargeData{
		Reason:     fmt.Sprintf("Daily PnL process for %d accounts", len(cmd.Accounts)),
		ReasonType: domain.ReasonDailyPnl,
		CreatedAt:  cmd.CreatedAt,
	}
	payload, err := parentData.Marshal()
	if err != nil {
		return err
	}

	parent, _, err := s.operations.GetOrAdd(ctx, domain.OperationNameDailyPnl, cmd.OperationID, func() *domain.OperationExecution {
		return domain.NewOperationExecution(domain.OperationNameDailyPnl, cmd.OperationID, payload)
	})
	if err != nil {
		return err
	}
	if parent.State > domain.StateInitiated {
		s.logger.InfoContext(ctx, "pnl process already dispatched, command ignored", "operation_id", cmd.OperationID)
		return nil
	}

	subIDs := make([]string, 0, len(cmd.Accounts))
	for _, a := range cmd.Accounts {
		subIDs = append(subIDs, domain.SubOperationID(cmd.OperationID, a.AccountID))
	}
	if err := s.barrier.TrackBatch(ctx, cmd.OperationID, subIDs); err != nil {
		return err
	}

	for _, a := range cmd.Accounts {
		subID := domain.SubOperationID(cmd.OperationID, a.AccountID)
		data := domain.ChargeData{
			AccountID:  a.AccountID,
			Amount:     a.PnlDelta,
			Reason:     "Daily unrealized PnL adjustment",
			ReasonType: domain.ReasonDailyPnl,
			SourceID:   a.AccountID,
			ParentID:   cmd.OperationID,
			CreatedAt:  cmd.CreatedAt,
		}
		if err := s.chargeOnce(ctx, domain.OperationNameDailyPnl, subID, data, domain.TopicPnlCalculated); err != nil {
			return err
		}
	}

	return s.markDispatched(ctx, domain.OperationNameDailyPnl, cmd.OperationID)
}

// chargeOnce 幂等收费核心：账本行与“已计算”事件同事务创建。
// 行已存在说明事件必然已经入 outbox，重复命令不再发布任何东西。
func (s *ChargingService) chargeOnce(ctx context.Context, name, id string, data domain.ChargeData, calculatedTopic string) error {
	payload, err := data.Marshal()
	if err != nil {
		return err
	}
	return s.operations.WithTx(ctx, func(txCtx context.Context) error {
		info, existed, err := s.operations.GetOrAdd(txCtx, name, id, func() *domain.OperationExecution {
			return domain.NewOperationExecution(name, id, payload)
		})
		if err != nil {
			return err
		}
		if existed {
			s.logger.InfoContext(ctx, "duplicate charge command ignored",
				"operation_name", name, "operation_id", id, "state", info.State.String())
			return nil
		}

		event := domain.CommissionCalculatedEvent{
			OperationID:  id,
			AccountID:    data.AccountID,
			Amount:       data.Amount,
			Reason:       data.Reason,
			ReasonType:   data.ReasonType,
			SourceID:     data.SourceID,
			ParentID:     data.ParentID,
			CalculatedAt: time.Now().UTC(),
		}
		return s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), calculatedTopic, id, event)
	})
}

// markDispatched 批处理派发完成后推进父操作 Initiated → Calculated。
// 完成度跟踪器以该状态为前置条件，派发未完成前不会发布汇总。
func (s *ChargingService) markDispatched(ctx context.Context, name, operationID string) error {
	parent, err := s.operations.Get(ctx, name, operationID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%w: %s/%s", domain.ErrExecutionNotFound, name, operationID)
	}
	applied, err := parent.SwitchState(domain.StateInitiated, domain.StateCalculated)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	return s.operations.Save(ctx, parent)
}
