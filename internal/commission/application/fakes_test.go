package application_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

// 内存版仓储与发布者，复刻持久层的幂等插入与乐观并发语义。

type fakeOperationRepo struct {
	mu   sync.Mutex
	seq  int64
	rows map[string]*domain.OperationExecution
}

func newFakeOperationRepo() *fakeOperationRepo {
	return &fakeOperationRepo{rows: make(map[string]*domain.OperationExecution)}
}

func key(name, id string) string { return name + "|" + id }

func cloneExecution(info *domain.OperationExecution) *domain.OperationExecution {
	cp := *info
	cp.Data = append([]byte(nil), info.Data...)
	return &cp
}

func (r *fakeOperationRepo) nextToken() time.Time {
	r.seq++
	return time.Unix(0, r.seq)
}

func (r *fakeOperationRepo) GetOrAdd(_ context.Context, name, id string, factory func() *domain.OperationExecution) (*domain.OperationExecution, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[key(name, id)]; ok {
		return cloneExecution(existing), true, nil
	}
	info := factory()
	info.Name, info.ID = name, id
	info.LastModified = r.nextToken()
	r.rows[key(name, id)] = cloneExecution(info)
	return cloneExecution(info), false, nil
}

func (r *fakeOperationRepo) Get(_ context.Context, name, id string) (*domain.OperationExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[key(name, id)]
	if !ok {
		return nil, nil
	}
	return cloneExecution(existing), nil
}

func (r *fakeOperationRepo) Save(_ context.Context, info *domain.OperationExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[key(info.Name, info.ID)]
	if !ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrExecutionNotFound, info.Name, info.ID)
	}
	if !existing.LastModified.Equal(info.LastModified) {
		return fmt.Errorf("%w: %s/%s", domain.ErrConcurrentModification, info.Name, info.ID)
	}
	info.LastModified = r.nextToken()
	r.rows[key(info.Name, info.ID)] = cloneExecution(info)
	return nil
}

func (r *fakeOperationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeOperationRepo) state(name, id string) domain.OperationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[key(name, id)]; ok {
		return existing.State
	}
	return domain.OperationState(-1)
}

type publishedEvent struct {
	Topic string
	Key   string
	Event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *fakePublisher) PublishInTx(ctx context.Context, _ any, topic, key string, event any) error {
	return p.Publish(ctx, topic, key, event)
}

func (p *fakePublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

type fakeSwapRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.SwapCharge
}

func newFakeSwapRepo() *fakeSwapRepo {
	return &fakeSwapRepo{rows: make(map[string]*domain.SwapCharge)}
}

func (r *fakeSwapRepo) CreatePending(_ context.Context, charges []*domain.SwapCharge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range charges {
		k := key(c.OperationID, c.PositionID)
		if _, ok := r.rows[k]; ok {
			continue
		}
		cp := *c
		r.rows[k] = &cp
	}
	return nil
}

func (r *fakeSwapRepo) MarkOutcome(_ context.Context, operationID, positionID string, succeeded bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[key(operationID, positionID)]
	if !ok || c.WasCharged != nil {
		return 0, nil
	}
	v := succeeded
	now := time.Now()
	c.WasCharged = &v
	c.ChargedAt = &now
	return 1, nil
}

func (r *fakeSwapRepo) GetBatchState(_ context.Context, operationID string) (domain.BatchState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var state domain.BatchState
	for _, c := range r.rows {
		if c.OperationID != operationID {
			continue
		}
		state.Total++
		switch {
		case c.WasCharged == nil:
			state.NotProcessed++
		case !*c.WasCharged:
			state.Failed++
		}
	}
	return state, nil
}

func (r *fakeSwapRepo) List(_ context.Context, operationID string) ([]*domain.SwapCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SwapCharge
	for _, c := range r.rows {
		if c.OperationID == operationID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeRates struct{}

func (fakeRates) CommissionRate(context.Context, string) (domain.CommissionRate, error) {
	return domain.CommissionRate{
		Rate:   decimal.NewFromFloat(0.001),
		MinFee: decimal.NewFromFloat(0.01),
		MaxFee: decimal.NewFromInt(100),
	}, nil
}

func (fakeRates) SwapRate(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromFloat(0.0365), nil
}

func (fakeRates) OnBehalfFee(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(10), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
