package application

import (
	"context"

	"github.com/wyfcoding/commission/internal/commission/domain"
)

// QueryService 只读查询服务，供 HTTP 层使用。
type QueryService struct {
	operations  domain.OperationRepository
	swapCharges domain.SwapChargeRepository
}

// NewQueryService 创建查询服务。
func NewQueryService(operations domain.OperationRepository, swapCharges domain.SwapChargeRepository) *QueryService {
	return &QueryService{operations: operations, swapCharges: swapCharges}
}

// GetOperation 查询单个账本行，不存在时返回 (nil, nil)。
func (s *QueryService) GetOperation(ctx context.Context, name, id string) (*OperationDTO, error) {
	info, err := s.operations.Get(ctx, name, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return toOperationDTO(info)
}

// GetSwapBatchState 查询隔夜利息批次的聚合进度。
func (s *QueryService) GetSwapBatchState(ctx context.Context, operationID string) (domain.BatchState, error) {
	return s.swapCharges.GetBatchState(ctx, operationID)
}

// ListSwapCharges 查询隔夜利息批次的全部逐仓扣费行。
func (s *QueryService) ListSwapCharges(ctx context.Context, operationID string) ([]*domain.SwapCharge, error) {
	return s.swapCharges.List(ctx, operationID)
}
