package consumer

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

// verdict 统一的消费结论：可重试错误交还消费者做带退避的重投递；
// 不可恢复错误记录后丢弃，避免毒消息卡死分区。
func verdict(ctx context.Context, logger *slog.Logger, msg kafka.Message, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsRetryable(err) {
		logger.WarnContext(ctx, "retryable failure, message will be redelivered",
			"topic", msg.Topic, "error", err)
		return err
	}
	logger.ErrorContext(ctx, "unrecoverable failure, message dropped",
		"topic", msg.Topic, "key", string(msg.Key), "error", err)
	return nil
}
