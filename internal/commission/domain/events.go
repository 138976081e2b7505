package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 入站命令主题。命令语义为至少一次投递，处理器必须幂等。
const (
	TopicOrderExecuted     = "trading.order.executed"
	TopicOnBehalfPerformed = "trading.onbehalf.performed"
	TopicSwapProcessStart  = "commission.swap.process.start"
	TopicPnlProcessStart   = "commission.pnl.process.start"
)

// 内部“已计算”事件主题，仅由收费 saga 消费。
const (
	TopicOrderCommissionCalculated    = "commission.order.calculated"
	TopicOnBehalfCommissionCalculated = "commission.onbehalf.calculated"
	TopicSwapCommissionCalculated     = "commission.swap.calculated"
	TopicPnlCalculated                = "commission.pnl.calculated"
)

// 账户服务边界：出站余额变动命令与外部回执事件主题。
const (
	TopicBalanceChangeCommand = "account.balance.change"
	TopicBalanceChanged       = "account.balance.changed"
	TopicBalanceRejected      = "account.balance.rejected"
)

// 批次汇总事件主题，供监控/审计消费。
const (
	TopicSwapProcessCompleted = "commission.swap.completed"
	TopicPnlProcessCompleted  = "commission.pnl.completed"
)

// OrderExecutedCommand 订单成交收费命令。
type OrderExecutedCommand struct {
	OperationID string          `json:"operation_id"`
	OrderID     string          `json:"order_id"`
	AccountID   string          `json:"account_id"`
	Instrument  string          `json:"instrument"`
	Volume      decimal.Decimal `json:"volume"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OnBehalfPerformedCommand 代客操作收费命令，按操作次数计费。
type OnBehalfPerformedCommand struct {
	OperationID  string    `json:"operation_id"`
	OrderID      string    `json:"order_id"`
	AccountID    string    `json:"account_id"`
	ActionsCount int       `json:"actions_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// SwapPositionSnapshot 隔夜利息批处理携带的持仓快照。
type SwapPositionSnapshot struct {
	PositionID string          `json:"position_id"`
	AccountID  string          `json:"account_id"`
	Instrument string          `json:"instrument"`
	Volume     decimal.Decimal `json:"volume"`
	ClosePrice decimal.Decimal `json:"close_price"`
}

// StartSwapProcessCommand 隔夜利息批处理启动命令。
// 持仓快照由上游交易核心提供，本服务不拥有持仓状态。
type StartSwapProcessCommand struct {
	OperationID string                 `json:"operation_id"`
	Positions   []SwapPositionSnapshot `json:"positions"`
	CreatedAt   time.Time              `json:"created_at"`
}

// PnlAccountSnapshot 每日盈亏批处理携带的账户快照，PnlDelta 为当日未实现盈亏变动（有符号）。
type PnlAccountSnapshot struct {
	AccountID string          `json:"account_id"`
	PnlDelta  decimal.Decimal `json:"pnl_delta"`
}

// StartPnlProcessCommand 每日盈亏批处理启动命令。
type StartPnlProcessCommand struct {
	OperationID string               `json:"operation_id"`
	Accounts    []PnlAccountSnapshot `json:"accounts"`
	CreatedAt   time.Time            `json:"created_at"`
}

// CommissionCalculatedEvent “金额已计算”事实，四条工作流共用结构。
// 事件可能被重复投递，消费侧（saga）必须安全地重复消费。
type CommissionCalculatedEvent struct {
	OperationID  string          `json:"operation_id"`
	AccountID    string          `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	ReasonType   ReasonType      `json:"reason_type"`
	SourceID     string          `json:"source_id"`
	ParentID     string          `json:"parent_id,omitempty"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

// ChangeBalanceCommand 出站余额变动命令。
// OperationID 与 EventSourceID 供下游账户服务自行去重。
type ChangeBalanceCommand struct {
	OperationID   string          `json:"operation_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReasonType    ReasonType      `json:"reason_type"`
	Reason        string          `json:"reason"`
	EventSourceID string          `json:"event_source_id"`
	RequestedAt   time.Time       `json:"requested_at"`
}

// BalanceChangeResultEvent 外部账户服务的回执：余额变动成功或被拒绝。
type BalanceChangeResultEvent struct {
	OperationID   string          `json:"operation_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReasonType    ReasonType      `json:"reason_type"`
	EventSourceID string          `json:"event_source_id"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ProcessCompletedEvent 批次汇总事件，每个批次恰好发布一次。
type ProcessCompletedEvent struct {
	OperationID string    `json:"operation_id"`
	Total       int64     `json:"total"`
	Failed      int64     `json:"failed"`
	Timestamp   time.Time `json:"timestamp"`
}
