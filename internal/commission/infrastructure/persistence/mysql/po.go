package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/commission/internal/commission/domain"
	"gorm.io/gorm"
)

// OperationExecutionPO 操作执行账本持久化对象。
// (operation_name, operation_id) 唯一索引承载幂等插入，last_modified 承载乐观并发。
type OperationExecutionPO struct {
	gorm.Model
	OperationName string    `gorm:"column:operation_name;type:varchar(64);uniqueIndex:uk_operation,priority:1;not null"`
	OperationID   string    `gorm:"column:operation_id;type:varchar(128);uniqueIndex:uk_operation,priority:2;not null"`
	State         int       `gorm:"column:state;not null"`
	Data          []byte    `gorm:"column:data;type:json"`
	SchemaVersion int       `gorm:"column:schema_version;not null;default:1"`
	LastModified  time.Time `gorm:"column:last_modified;type:datetime(6);not null"`
}

func (OperationExecutionPO) TableName() string {
	return "operation_executions"
}

func (po *OperationExecutionPO) ToDomain() *domain.OperationExecution {
	return &domain.OperationExecution{
		Name:          po.OperationName,
		ID:            po.OperationID,
		State:         domain.OperationState(po.State),
		Data:          po.Data,
		SchemaVersion: po.SchemaVersion,
		LastModified:  po.LastModified,
		CreatedAt:     po.CreatedAt,
	}
}

func (po *OperationExecutionPO) FromDomain(info *domain.OperationExecution) {
	po.OperationName = info.Name
	po.OperationID = info.ID
	po.State = int(info.State)
	po.Data = info.Data
	po.SchemaVersion = info.SchemaVersion
	po.LastModified = info.LastModified
}

// SwapChargePO 隔夜利息逐仓扣费行持久化对象。
// was_charged 三态列（NULL/1/0）是聚合式完成度统计的依据。
type SwapChargePO struct {
	gorm.Model
	OperationID string          `gorm:"column:operation_id;type:varchar(128);uniqueIndex:uk_swap_position,priority:1;not null"`
	PositionID  string          `gorm:"column:position_id;type:varchar(64);uniqueIndex:uk_swap_position,priority:2;not null"`
	AccountID   string          `gorm:"column:account_id;type:varchar(64);index;not null"`
	Instrument  string          `gorm:"column:instrument;type:varchar(32);not null"`
	Volume      decimal.Decimal `gorm:"column:volume;type:decimal(32,18);not null"`
	ClosePrice  decimal.Decimal `gorm:"column:close_price;type:decimal(32,18);not null"`
	SwapRate    decimal.Decimal `gorm:"column:swap_rate;type:decimal(32,18);not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null"`
	WasCharged  *bool           `gorm:"column:was_charged"`
	ChargedAt   *time.Time      `gorm:"column:charged_at;type:datetime(6)"`
}

func (SwapChargePO) TableName() string {
	return "overnight_swap_charges"
}

func (po *SwapChargePO) ToDomain() *domain.SwapCharge {
	return &domain.SwapCharge{
		OperationID: po.OperationID,
		PositionID:  po.PositionID,
		AccountID:   po.AccountID,
		Instrument:  po.Instrument,
		Volume:      po.Volume,
		ClosePrice:  po.ClosePrice,
		SwapRate:    po.SwapRate,
		Amount:      po.Amount,
		WasCharged:  po.WasCharged,
		ChargedAt:   po.ChargedAt,
		CreatedAt:   po.CreatedAt,
		UpdatedAt:   po.UpdatedAt,
	}
}

func (po *SwapChargePO) FromDomain(c *domain.SwapCharge) {
	po.OperationID = c.OperationID
	po.PositionID = c.PositionID
	po.AccountID = c.AccountID
	po.Instrument = c.Instrument
	po.Volume = c.Volume
	po.ClosePrice = c.ClosePrice
	po.SwapRate = c.SwapRate
	po.Amount = c.Amount
	po.WasCharged = c.WasCharged
	po.ChargedAt = c.ChargedAt
}
