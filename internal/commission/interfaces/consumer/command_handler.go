package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/commission/internal/commission/application"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

// CommandHandler 消费入站收费命令并分发给对应的处理器。
type CommandHandler struct {
	charging *application.ChargingService
	logger   *slog.Logger
}

func NewCommandHandler(charging *application.ChargingService, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{charging: charging, logger: logger}
}

func (h *CommandHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var err error
	switch msg.Topic {
	case domain.TopicOrderExecuted:
		var cmd domain.OrderExecutedCommand
		if uerr := json.Unmarshal(msg.Value, &cmd); uerr != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal order executed command", "error", uerr)
			return nil
		}
		if cmd.OperationID == "" {
			return nil
		}
		err = h.charging.HandleOrderExecuted(ctx, cmd)

	case domain.TopicOnBehalfPerformed:
		var cmd domain.OnBehalfPerformedCommand
		if uerr := json.Unmarshal(msg.Value, &cmd); uerr != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal on-behalf command", "error", uerr)
			return nil
		}
		if cmd.OperationID == "" {
			return nil
		}
		err = h.charging.HandleOnBehalfPerformed(ctx, cmd)

	case domain.TopicSwapProcessStart:
		var cmd domain.StartSwapProcessCommand
		if uerr := json.Unmarshal(msg.Value, &cmd); uerr != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal swap process command", "error", uerr)
			return nil
		}
		if cmd.OperationID == "" {
			return nil
		}
		err = h.charging.HandleSwapProcessStart(ctx, cmd)

	case domain.TopicPnlProcessStart:
		var cmd domain.StartPnlProcessCommand
		if uerr := json.Unmarshal(msg.Value, &cmd); uerr != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal pnl process command", "error", uerr)
			return nil
		}
		if cmd.OperationID == "" {
			return nil
		}
		err = h.charging.HandlePnlProcessStart(ctx, cmd)

	default:
		return nil
	}

	return verdict(ctx, h.logger, msg, err)
}
