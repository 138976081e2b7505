package domain

import "errors"

var (
	// ErrStateNotReady 守卫迁移发现当前状态低于前置条件。
	// 事件乱序或提前投递所致，交还消息基础设施重投递即可恢复。
	ErrStateNotReady = errors.New("operation state below expected precondition")

	// ErrConcurrentModification 乐观并发写入被拒绝（令牌已变化）。
	// 整个处理流程从新鲜读取重来即可恢复。
	ErrConcurrentModification = errors.New("operation execution modified concurrently")

	// ErrExecutionNotFound 需要账本行时却不存在，说明阶段次序被破坏
	// （后置阶段先于前置阶段的行创建而触发）。不可重试。
	ErrExecutionNotFound = errors.New("operation execution not found")
)

// IsRetryable 判定错误是否应交还消息基础设施做带退避的重投递。
// 不在此列的错误视为不可恢复，由调用方记录并上报，不做无限重试。
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStateNotReady) || errors.Is(err, ErrConcurrentModification)
}
