package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/commission/internal/commission/application"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

// BalanceResultHandler 消费外部账户服务的余额变动回执。
type BalanceResultHandler struct {
	outcome *application.OutcomeService
	logger  *slog.Logger
}

func NewBalanceResultHandler(outcome *application.OutcomeService, logger *slog.Logger) *BalanceResultHandler {
	return &BalanceResultHandler{outcome: outcome, logger: logger}
}

func (h *BalanceResultHandler) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.Topic != domain.TopicBalanceChanged && msg.Topic != domain.TopicBalanceRejected {
		return nil
	}

	var ev domain.BalanceChangeResultEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal balance change result", "topic", msg.Topic, "error", err)
		return nil
	}
	if ev.OperationID == "" {
		return nil
	}

	var err error
	if msg.Topic == domain.TopicBalanceChanged {
		err = h.outcome.HandleBalanceChanged(ctx, ev)
	} else {
		err = h.outcome.HandleBalanceRejected(ctx, ev)
	}
	return verdict(ctx, h.logger, msg, err)
}
