package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ChargeDataSchemaVersion 当前账本负载结构版本。
const ChargeDataSchemaVersion = 1

// ReasonType 余额变动原因类型，出站命令携带、外部回执原样回传，
// 回执消费侧据此把结果路由回对应工作流。
type ReasonType string

const (
	ReasonCommission  ReasonType = "COMMISSION"
	ReasonOnBehalfFee ReasonType = "ON_BEHALF_FEE"
	ReasonSwap        ReasonType = "SWAP"
	ReasonDailyPnl    ReasonType = "UNREALIZED_DAILY_PNL"
)

// OperationNameForReason 回执路由：原因类型 → 账本工作流名称。
func OperationNameForReason(reason ReasonType) (string, bool) {
	switch reason {
	case ReasonCommission:
		return OperationNameOrderCommission, true
	case ReasonOnBehalfFee:
		return OperationNameOnBehalfCommission, true
	case ReasonSwap:
		return OperationNameOvernightSwap, true
	case ReasonDailyPnl:
		return OperationNameDailyPnl, true
	default:
		return "", false
	}
}

// ChargeData 账本行负载，四条工作流共用的不透明 JSON 结构。
// Amount 是有符号余额变动额：扣费为负，入账为正。
type ChargeData struct {
	AccountID  string          `json:"account_id"`
	Instrument string          `json:"instrument,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	ReasonType ReasonType      `json:"reason_type"`
	SourceID   string          `json:"source_id"`
	ParentID   string          `json:"parent_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (d ChargeData) Marshal() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge data: %w", err)
	}
	return raw, nil
}

func UnmarshalChargeData(raw []byte) (ChargeData, error) {
	var d ChargeData
	if err := json.Unmarshal(raw, &d); err != nil {
		return ChargeData{}, fmt.Errorf("failed to unmarshal charge data: %w", err)
	}
	return d, nil
}
