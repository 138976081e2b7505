package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/commission/internal/commission/application"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

// 计算事件主题 → 账本工作流名称。
var calculatedTopicOperations = map[string]string{
	domain.TopicOrderCommissionCalculated:    domain.OperationNameOrderCommission,
	domain.TopicOnBehalfCommissionCalculated: domain.OperationNameOnBehalfCommission,
	domain.TopicSwapCommissionCalculated:     domain.OperationNameOvernightSwap,
	domain.TopicPnlCalculated:                domain.OperationNameDailyPnl,
}

// CalculatedHandler 消费“已计算”事件并驱动收费 saga。
type CalculatedHandler struct {
	saga   *application.ChargingSaga
	logger *slog.Logger
}

func NewCalculatedHandler(saga *application.ChargingSaga, logger *slog.Logger) *CalculatedHandler {
	return &CalculatedHandler{saga: saga, logger: logger}
}

func (h *CalculatedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	name, ok := calculatedTopicOperations[msg.Topic]
	if !ok {
		return nil
	}

	var ev domain.CommissionCalculatedEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal calculated event", "topic", msg.Topic, "error", err)
		return nil
	}
	if ev.OperationID == "" {
		return nil
	}

	return verdict(ctx, h.logger, msg, h.saga.HandleCalculated(ctx, name, ev))
}
