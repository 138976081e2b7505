package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/commission/internal/commission/application"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

type outcomeFixture struct {
	operations *fakeOperationRepo
	swaps      *fakeSwapRepo
	publisher  *fakePublisher
	barrier    *application.BarrierTracker
	charging   *application.ChargingService
	saga       *application.ChargingSaga
	outcome    *application.OutcomeService
}

func newOutcomeFixture(barrierTimeout time.Duration) *outcomeFixture {
	operations := newFakeOperationRepo()
	swaps := newFakeSwapRepo()
	publisher := newFakePublisher()
	barrier := application.NewBarrierTracker(publisher, domain.TopicPnlProcessCompleted, barrierTimeout, testLogger())
	aggregate := application.NewAggregateTracker(operations, swaps, publisher, testLogger())
	return &outcomeFixture{
		operations: operations,
		swaps:      swaps,
		publisher:  publisher,
		barrier:    barrier,
		charging:   application.NewChargingService(operations, swaps, fakeRates{}, publisher, barrier, testLogger()),
		saga:       application.NewChargingSaga(operations, publisher, testLogger()),
		outcome:    application.NewOutcomeService(operations, aggregate, barrier, testLogger()),
	}
}

// runSaga 把所有挂起的“已计算”事件喂给 saga，模拟事件消费。
func (f *outcomeFixture) runSaga(t *testing.T, topic, name string) {
	t.Helper()
	for _, pe := range f.publisher.byTopic(topic) {
		ev := pe.Event.(domain.CommissionCalculatedEvent)
		require.NoError(t, f.saga.HandleCalculated(context.Background(), name, ev))
	}
}

func TestOutcomeAdvancesSingleChargeToTerminalState(t *testing.T) {
	f := newOutcomeFixture(time.Minute)
	cmd := domain.OrderExecutedCommand{
		OperationID: "op-1",
		OrderID:     "order-1",
		AccountID:   "acc-1",
		Instrument:  "EURUSD",
		Volume:      decimal.NewFromInt(10),
		Price:       decimal.NewFromInt(150),
	}
	require.NoError(t, f.charging.HandleOrderExecuted(context.Background(), cmd))
	f.runSaga(t, domain.TopicOrderCommissionCalculated, domain.OperationNameOrderCommission)

	ev := domain.BalanceChangeResultEvent{
		OperationID: "op-1",
		AccountID:   "acc-1",
		ReasonType:  domain.ReasonCommission,
	}
	require.NoError(t, f.outcome.HandleBalanceChanged(context.Background(), ev))
	assert.Equal(t, domain.StateSucceeded, f.operations.state(domain.OperationNameOrderCommission, "op-1"))

	// 重复回执是空操作，迟到的拒绝回执也不会把终态拉回去
	require.NoError(t, f.outcome.HandleBalanceChanged(context.Background(), ev))
	require.NoError(t, f.outcome.HandleBalanceRejected(context.Background(), ev))
	assert.Equal(t, domain.StateSucceeded, f.operations.state(domain.OperationNameOrderCommission, "op-1"))
}

func TestOutcomeRejectedMarksFailed(t *testing.T) {
	f := newOutcomeFixture(time.Minute)
	require.NoError(t, f.charging.HandleOnBehalfPerformed(context.Background(), domain.OnBehalfPerformedCommand{
		OperationID:  "op-2",
		OrderID:      "order-2",
		AccountID:    "acc-2",
		ActionsCount: 2,
	}))
	f.runSaga(t, domain.TopicOnBehalfCommissionCalculated, domain.OperationNameOnBehalfCommission)

	require.NoError(t, f.outcome.HandleBalanceRejected(context.Background(), domain.BalanceChangeResultEvent{
		OperationID:  "op-2",
		AccountID:    "acc-2",
		ReasonType:   domain.ReasonOnBehalfFee,
		ErrorMessage: "insufficient funds",
	}))
	assert.Equal(t, domain.StateFailed, f.operations.state(domain.OperationNameOnBehalfCommission, "op-2"))
}

func TestOutcomeBeforeSagaIsRetryable(t *testing.T) {
	f := newOutcomeFixture(time.Minute)
	require.NoError(t, f.charging.HandleOrderExecuted(context.Background(), domain.OrderExecutedCommand{
		OperationID: "op-3",
		OrderID:     "order-3",
		AccountID:   "acc-3",
		Instrument:  "EURUSD",
		Volume:      decimal.NewFromInt(1),
		Price:       decimal.NewFromInt(1000),
	}))

	// saga 尚未把行推进到 Calculated，回执必须等待重投递
	err := f.outcome.HandleBalanceChanged(context.Background(), domain.BalanceChangeResultEvent{
		OperationID: "op-3",
		ReasonType:  domain.ReasonCommission,
	})
	require.ErrorIs(t, err, domain.ErrStateNotReady)
	assert.True(t, domain.IsRetryable(err))
}

func TestOutcomeForeignReasonIsIgnored(t *testing.T) {
	f := newOutcomeFixture(time.Minute)
	require.NoError(t, f.outcome.HandleBalanceChanged(context.Background(), domain.BalanceChangeResultEvent{
		OperationID: "op-4",
		ReasonType:  domain.ReasonType("DEPOSIT"),
	}))
}

func TestOutcomeUnknownOperationIsFatal(t *testing.T) {
	f := newOutcomeFixture(time.Minute)
	err := f.outcome.HandleBalanceChanged(context.Background(), domain.BalanceChangeResultEvent{
		OperationID: "ghost",
		ReasonType:  domain.ReasonCommission,
	})
	require.ErrorIs(t, err, domain.ErrExecutionNotFound)
	assert.False(t, domain.IsRetryable(err))
}

// 隔夜利息全链路：启动命令 → saga → 回执 → 聚合收尾。
func TestSwapProcessEndToEnd(t *testing.T) {
	f := newOutcomeFixture(time.Minute)
	cmd := domain.StartSwapProcessCommand{
		OperationID: "swap-e2e",
		Positions: []domain.SwapPositionSnapshot{
			{PositionID: "p1", AccountID: "acc-1", Instrument: "EURUSD", Volume: decimal.NewFromInt(100), ClosePrice: decimal.NewFromInt(365)},
			{PositionID: "p2", AccountID: "acc-2", Instrument: "EURUSD", Volume: decimal.NewFromInt(200), ClosePrice: decimal.NewFromInt(365)},
		},
	}
	require.NoError(t, f.charging.HandleSwapProcessStart(context.Background(), cmd))
	f.runSaga(t, domain.TopicSwapCommissionCalculated, domain.OperationNameOvernightSwap)

	// p1 扣费成功，p2 被拒
	require.NoError(t, f.outcome.HandleBalanceChanged(context.Background(), domain.BalanceChangeResultEvent{
		OperationID: domain.SubOperationID("swap-e2e", "p1"),
		AccountID:   "acc-1",
		ReasonType:  domain.ReasonSwap,
	}))
	assert.Empty(t, f.publisher.byTopic(domain.TopicSwapProcessCompleted))

	require.NoError(t, f.outcome.HandleBalanceRejected(context.Background(), domain.BalanceChangeResultEvent{
		OperationID: domain.SubOperationID("swap-e2e", "p2"),
		AccountID:   "acc-2",
		ReasonType:  domain.ReasonSwap,
	}))

	summaries := f.publisher.byTopic(domain.TopicSwapProcessCompleted)
	require.Len(t, summaries, 1)
	ev := summaries[0].Event.(domain.ProcessCompletedEvent)
	assert.Equal(t, "swap-e2e", ev.OperationID)
	assert.Equal(t, int64(2), ev.Total)
	assert.Equal(t, int64(1), ev.Failed)

	assert.Equal(t, domain.StateSucceeded, f.operations.state(domain.OperationNameOvernightSwap, "swap-e2e"))
	assert.Equal(t, domain.StateSucceeded, f.operations.state(domain.OperationNameOvernightSwap, "swap-e2e_p1"))
	assert.Equal(t, domain.StateFailed, f.operations.state(domain.OperationNameOvernightSwap, "swap-e2e_p2"))
}

// 每日盈亏全链路：启动命令 → saga → 成功回执确认屏障 → 汇总。
func TestPnlProcessEndToEnd(t *testing.T) {
	f := newOutcomeFixture(time.Minute)
	cmd := domain.StartPnlProcessCommand{
		OperationID: "pnl-e2e",
		Accounts: []domain.PnlAccountSnapshot{
			{AccountID: "acc-1", PnlDelta: decimal.NewFromInt(50)},
			{AccountID: "acc-2", PnlDelta: decimal.NewFromInt(-20)},
		},
	}
	require.NoError(t, f.charging.HandlePnlProcessStart(context.Background(), cmd))
	f.runSaga(t, domain.TopicPnlCalculated, domain.OperationNameDailyPnl)

	for _, acc := range []string{"acc-1", "acc-2"} {
		require.NoError(t, f.outcome.HandleBalanceChanged(context.Background(), domain.BalanceChangeResultEvent{
			OperationID: domain.SubOperationID("pnl-e2e", acc),
			AccountID:   acc,
			ReasonType:  domain.ReasonDailyPnl,
		}))
	}

	summaries := f.publisher.byTopic(domain.TopicPnlProcessCompleted)
	require.Len(t, summaries, 1)
	ev := summaries[0].Event.(domain.ProcessCompletedEvent)
	assert.Equal(t, "pnl-e2e", ev.OperationID)
	assert.Equal(t, int64(2), ev.Total)
	assert.Equal(t, int64(0), ev.Failed)
}

// 只有成功回执会确认屏障，被拒的子操作在超时后计为失败。
func TestPnlProcessRejectedChargeTimesOut(t *testing.T) {
	f := newOutcomeFixture(40 * time.Millisecond)
	cmd := domain.StartPnlProcessCommand{
		OperationID: "pnl-partial",
		Accounts: []domain.PnlAccountSnapshot{
			{AccountID: "acc-1", PnlDelta: decimal.NewFromInt(10)},
			{AccountID: "acc-2", PnlDelta: decimal.NewFromInt(20)},
		},
	}
	require.NoError(t, f.charging.HandlePnlProcessStart(context.Background(), cmd))
	f.runSaga(t, domain.TopicPnlCalculated, domain.OperationNameDailyPnl)

	require.NoError(t, f.outcome.HandleBalanceChanged(context.Background(), domain.BalanceChangeResultEvent{
		OperationID: domain.SubOperationID("pnl-partial", "acc-1"),
		ReasonType:  domain.ReasonDailyPnl,
	}))
	require.NoError(t, f.outcome.HandleBalanceRejected(context.Background(), domain.BalanceChangeResultEvent{
		OperationID: domain.SubOperationID("pnl-partial", "acc-2"),
		ReasonType:  domain.ReasonDailyPnl,
	}))

	ev := waitForSummary(t, f.publisher)
	assert.Equal(t, int64(2), ev.Total)
	assert.Equal(t, int64(1), ev.Failed)
}
