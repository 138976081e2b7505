package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wyfcoding/commission/internal/commission/domain"
)

// DefaultBarrierTimeout 屏障收尾的兜底超时。
// 超时必然触发收尾：资金变动批次要得出最坏情况的结论并上报，而不是永远挂起。
const DefaultBarrierTimeout = 2 * time.Minute

// BarrierTracker 内存屏障式完成度跟踪（每日盈亏批处理）。
// 子操作集合在启动时全部已知，保存在内存映射里，由回执逐个确认；
// 全部确认或超时（先到者）触发恰好一次收尾。同一实例同时只跟踪一个批次。
// 状态随进程丢失——周边工作流容忍偶发的汇总缺失，这里换来零存储开销。
type BarrierTracker struct {
	publisher domain.EventPublisher
	topic     string
	timeout   time.Duration
	logger    *slog.Logger

	// 容量 1：串行化批次会话
	sessions chan struct{}

	mu          sync.Mutex
	session     uint64
	active      bool
	finalized   bool
	operationID string
	pending     map[string]bool
	timer       *time.Timer
}

// NewBarrierTracker 创建内存屏障跟踪器。timeout <= 0 时使用默认值。
func NewBarrierTracker(publisher domain.EventPublisher, topic string, timeout time.Duration, logger *slog.Logger) *BarrierTracker {
	if timeout <= 0 {
		timeout = DefaultBarrierTimeout
	}
	return &BarrierTracker{
		publisher: publisher,
		topic:     topic,
		timeout:   timeout,
		logger:    logger.With("service", "pnl_barrier_tracker"),
		sessions:  make(chan struct{}, 1),
	}
}

// TrackBatch 开始跟踪一个批次。
// 已在跟踪同一批次时直接返回（命令重投递）；有其他批次在跟踪时
// 在 ctx 允许的范围内等待其收尾。
func (t *BarrierTracker) TrackBatch(ctx context.Context, operationID string, subIDs []string) error {
	t.mu.Lock()
	if t.active && t.operationID == operationID {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	select {
	case t.sessions <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	t.session++
	session := t.session
	t.active = true
	t.finalized = false
	t.operationID = operationID
	t.pending = make(map[string]bool, len(subIDs))
	for _, id := range subIDs {
		t.pending[id] = false
	}
	t.timer = time.AfterFunc(t.timeout, func() {
		t.finalize(session, "timeout")
	})
	t.mu.Unlock()

	t.logger.Info("tracking pnl batch", "operation_id", operationID, "sub_operations", len(subIDs))
	return nil
}

// Confirm 标记一个子操作完成。全部确认后立即收尾并取消超时（快路径）。
// 未在跟踪的、未知的或已确认的子操作 ID 一律忽略（回执重复投递）。
func (t *BarrierTracker) Confirm(subID string) {
	t.mu.Lock()
	if !t.active || t.finalized {
		t.mu.Unlock()
		return
	}
	done, known := t.pending[subID]
	if !known || done {
		t.mu.Unlock()
		return
	}
	t.pending[subID] = true
	session := t.session

	all := true
	for _, confirmed := range t.pending {
		if !confirmed {
			all = false
			break
		}
	}
	t.mu.Unlock()

	if all {
		t.finalize(session, "all confirmed")
	}
}

// finalize 收尾：确认完毕与超时是一场竞态，finalized 闩锁保证先到者只收尾一次。
// session 是收尾被安排时的会话代次——已经在锁外排队的迟到收尾
// （比如 Stop 前就触发的旧定时器）在下一个批次开始后代次失配，退化为空操作。
func (t *BarrierTracker) finalize(session uint64, trigger string) {
	t.mu.Lock()
	if !t.active || t.finalized || t.session != session {
		t.mu.Unlock()
		return
	}
	t.finalized = true
	if t.timer != nil {
		t.timer.Stop()
	}

	operationID := t.operationID
	total := int64(len(t.pending))
	var failed int64
	for _, confirmed := range t.pending {
		if !confirmed {
			failed++
		}
	}

	t.active = false
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()

	// 释放会话，允许下一个批次开始
	<-t.sessions

	event := domain.ProcessCompletedEvent{
		OperationID: operationID,
		Total:       total,
		Failed:      failed,
		Timestamp:   time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.publisher.Publish(ctx, t.topic, operationID, event); err != nil {
		t.logger.Error("failed to publish pnl process summary",
			"operation_id", operationID, "error", err)
	}

	t.logger.Info("pnl process finalized",
		"operation_id", operationID, "trigger", trigger, "total", total, "failed", failed)
}
