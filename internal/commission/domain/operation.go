package domain

import (
	"fmt"
	"time"
)

// OperationState 操作执行状态。数值顺序即生命周期顺序，
// 守卫式迁移依赖这一单调性：状态只会前进，不会回退。
type OperationState int

const (
	StateInitiated OperationState = iota
	StateCalculated
	StateSucceeded
	StateFailed
)

func (s OperationState) String() string {
	switch s {
	case StateInitiated:
		return "INITIATED"
	case StateCalculated:
		return "CALCULATED"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// 工作流名称。账本表按 (operation_name, operation_id) 区分四条收费工作流。
const (
	OperationNameOrderCommission    = "ExecutedOrderCommission"
	OperationNameOnBehalfCommission = "OnBehalfCommission"
	OperationNameOvernightSwap      = "OvernightSwapCommission"
	OperationNameDailyPnl           = "DailyPnlCommission"
)

// OperationExecution 操作执行账本行，工作流状态的唯一权威记录。
// Data 为不透明 JSON 负载（见 ChargeData），LastModified 是乐观并发令牌。
// 正常运行中账本行只追加、只推进状态，从不删除，以便审计与幂等回放。
type OperationExecution struct {
	Name          string
	ID            string
	State         OperationState
	Data          []byte
	SchemaVersion int
	LastModified  time.Time
	CreatedAt     time.Time
}

// NewOperationExecution 创建处于 Initiated 状态的账本行。
func NewOperationExecution(name, id string, data []byte) *OperationExecution {
	return &OperationExecution{
		Name:          name,
		ID:            id,
		State:         StateInitiated,
		Data:          data,
		SchemaVersion: ChargeDataSchemaVersion,
	}
}

// SwitchState 守卫式状态迁移。
// 当前状态低于 expected：上游阶段尚未到位，返回 ErrStateNotReady（可重试）；
// 当前状态高于 expected：迁移已发生过，返回 applied=false（幂等空操作）；
// 当前状态等于 expected：推进到 target，返回 applied=true。
// 调用方仅在 applied=true 时允许产生外部副作用。
func (o *OperationExecution) SwitchState(expected, target OperationState) (bool, error) {
	if o.State < expected {
		return false, fmt.Errorf("%w: %s/%s is %s, expected %s",
			ErrStateNotReady, o.Name, o.ID, o.State, expected)
	}
	if o.State > expected {
		return false, nil
	}
	o.State = target
	return true, nil
}

// SubOperationID 派生批处理子操作 ID：{operationId}_{itemId}。
func SubOperationID(operationID, itemID string) string {
	return operationID + "_" + itemID
}
