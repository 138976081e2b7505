package application

import (
	"time"

	"github.com/wyfcoding/commission/internal/commission/domain"
)

// OperationDTO 账本行的对外表示。
type OperationDTO struct {
	OperationName string            `json:"operation_name"`
	OperationID   string            `json:"operation_id"`
	State         string            `json:"state"`
	Data          domain.ChargeData `json:"data"`
	LastModified  time.Time         `json:"last_modified"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toOperationDTO(info *domain.OperationExecution) (*OperationDTO, error) {
	data, err := domain.UnmarshalChargeData(info.Data)
	if err != nil {
		return nil, err
	}
	return &OperationDTO{
		OperationName: info.Name,
		OperationID:   info.ID,
		State:         info.State.String(),
		Data:          data,
		LastModified:  info.LastModified,
		CreatedAt:     info.CreatedAt,
	}, nil
}
