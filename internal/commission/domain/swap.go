package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapCharge 隔夜利息逐仓扣费行。
// WasCharged 三态：nil 尚未处理 / true 扣费成功 / false 扣费失败，
// 是聚合式完成度跟踪的持久化依据。
type SwapCharge struct {
	OperationID string
	PositionID  string
	AccountID   string
	Instrument  string
	Volume      decimal.Decimal
	ClosePrice  decimal.Decimal
	SwapRate    decimal.Decimal
	Amount      decimal.Decimal
	WasCharged  *bool
	ChargedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BatchState 一个父操作下所有逐仓扣费行的聚合进度。
type BatchState struct {
	Total        int64
	Failed       int64
	NotProcessed int64
}

// Complete 批次完成判定：存在扣费行且全部到达终态。
func (b BatchState) Complete() bool {
	return b.Total > 0 && b.NotProcessed == 0
}
