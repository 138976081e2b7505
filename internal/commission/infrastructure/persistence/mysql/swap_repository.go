package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// swapChargeRepository 隔夜利息逐仓扣费行仓储实现。
type swapChargeRepository struct {
	db *gorm.DB
}

// NewSwapChargeRepository 创建并返回一个新的 swapChargeRepository 实例。
func NewSwapChargeRepository(db *gorm.DB) domain.SwapChargeRepository {
	return &swapChargeRepository{db: db}
}

func (r *swapChargeRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *swapChargeRepository) CreatePending(ctx context.Context, charges []*domain.SwapCharge) error {
	if len(charges) == 0 {
		return nil
	}
	pos := make([]*SwapChargePO, 0, len(charges))
	for _, c := range charges {
		po := &SwapChargePO{}
		po.FromDomain(c)
		pos = append(pos, po)
	}
	// 命令重投递会再次尝试创建同一批行，唯一索引冲突直接跳过
	err := r.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operation_id"}, {Name: "position_id"}},
		DoNothing: true,
	}).Create(&pos).Error
	if err != nil {
		return fmt.Errorf("failed to create pending swap charges: %w", err)
	}
	return nil
}

// MarkOutcome 仅在三态列尚未设置时写入，重复标记影响 0 行。
func (r *swapChargeRepository) MarkOutcome(ctx context.Context, operationID, positionID string, succeeded bool) (int64, error) {
	now := time.Now().UTC()
	result := r.getDB(ctx).WithContext(ctx).Model(&SwapChargePO{}).
		Where("operation_id = ? AND position_id = ? AND was_charged IS NULL", operationID, positionID).
		Updates(map[string]any{
			"was_charged": succeeded,
			"charged_at":  now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark swap charge outcome %s/%s: %w", operationID, positionID, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *swapChargeRepository) GetBatchState(ctx context.Context, operationID string) (domain.BatchState, error) {
	var row struct {
		Total        int64
		Failed       int64
		NotProcessed int64
	}
	err := r.getDB(ctx).WithContext(ctx).Model(&SwapChargePO{}).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN was_charged = 0 THEN 1 ELSE 0 END), 0) AS failed, " +
			"COALESCE(SUM(CASE WHEN was_charged IS NULL THEN 1 ELSE 0 END), 0) AS not_processed").
		Where("operation_id = ?", operationID).
		Scan(&row).Error
	if err != nil {
		return domain.BatchState{}, fmt.Errorf("failed to aggregate swap batch state %s: %w", operationID, err)
	}
	return domain.BatchState{
		Total:        row.Total,
		Failed:       row.Failed,
		NotProcessed: row.NotProcessed,
	}, nil
}

func (r *swapChargeRepository) List(ctx context.Context, operationID string) ([]*domain.SwapCharge, error) {
	var pos []*SwapChargePO
	err := r.getDB(ctx).WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("position_id").
		Find(&pos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list swap charges %s: %w", operationID, err)
	}
	charges := make([]*domain.SwapCharge, len(pos))
	for i, po := range pos {
		charges[i] = po.ToDomain()
	}
	return charges, nil
}
