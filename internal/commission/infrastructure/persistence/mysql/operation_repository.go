package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// operationRepository 操作执行账本仓储实现。
type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository 创建并返回一个新的 operationRepository 实例。
func NewOperationRepository(db *gorm.DB) domain.OperationRepository {
	return &operationRepository{db: db}
}

func (r *operationRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *operationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

// GetOrAdd 幂等插入：依赖 (operation_name, operation_id) 唯一索引，
// 并发插入竞争中落败的一方改为读取先写者的行，绝不覆盖初始状态。
func (r *operationRepository) GetOrAdd(ctx context.Context, name, id string, factory func() *domain.OperationExecution) (*domain.OperationExecution, bool, error) {
	db := r.getDB(ctx)

	var po OperationExecutionPO
	po.FromDomain(factory())
	po.OperationName = name
	po.OperationID = id
	po.LastModified = time.Now().UTC().Truncate(time.Microsecond)

	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operation_name"}, {Name: "operation_id"}},
		DoNothing: true,
	}).Create(&po)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to insert operation execution %s/%s: %w", name, id, result.Error)
	}
	if result.RowsAffected > 0 {
		return po.ToDomain(), false, nil
	}

	existing, err := r.Get(ctx, name, id)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// 唯一索引冲突却读不到行，另一事务尚未提交，交给重试
		return nil, false, fmt.Errorf("%w: %s/%s", domain.ErrConcurrentModification, name, id)
	}
	return existing, true, nil
}

func (r *operationRepository) Get(ctx context.Context, name, id string) (*domain.OperationExecution, error) {
	var po OperationExecutionPO
	err := r.getDB(ctx).WithContext(ctx).
		Where("operation_name = ? AND operation_id = ?", name, id).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load operation execution %s/%s: %w", name, id, err)
	}
	return po.ToDomain(), nil
}

// Save 条件更新，以调用方读取时的 last_modified 为守卫。
// 0 行受影响时区分两种原因：行不存在（致命）与令牌失配（并发冲突，可重试）。
func (r *operationRepository) Save(ctx context.Context, info *domain.OperationExecution) error {
	db := r.getDB(ctx)
	now := time.Now().UTC().Truncate(time.Microsecond)

	result := db.WithContext(ctx).Model(&OperationExecutionPO{}).
		Where("operation_name = ? AND operation_id = ? AND last_modified = ?",
			info.Name, info.ID, info.LastModified).
		Updates(map[string]any{
			"state":          int(info.State),
			"data":           info.Data,
			"schema_version": info.SchemaVersion,
			"last_modified":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save operation execution %s/%s: %w", info.Name, info.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&OperationExecutionPO{}).
			Where("operation_name = ? AND operation_id = ?", info.Name, info.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check operation execution %s/%s: %w", info.Name, info.ID, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s/%s", domain.ErrExecutionNotFound, info.Name, info.ID)
		}
		return fmt.Errorf("%w: %s/%s", domain.ErrConcurrentModification, info.Name, info.ID)
	}

	info.LastModified = now
	return nil
}
