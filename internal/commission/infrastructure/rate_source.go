package infrastructure

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

// StaticRateProvider 静态费率源。
// 生产部署中由参考数据服务替换，这里提供平台默认档位，
// 前面通常套一层 redis 读穿缓存（见 persistence/redis）。
// 覆盖项可在运行中更新，读取方是并发的消费者 worker。
type StaticRateProvider struct {
	mu              sync.RWMutex
	commission      domain.CommissionRate
	swapRates       map[string]decimal.Decimal
	defaultSwapRate decimal.Decimal
	onBehalfFee     decimal.Decimal
}

// NewStaticRateProvider 创建带平台默认费率的静态费率源。
func NewStaticRateProvider() *StaticRateProvider {
	return &StaticRateProvider{
		commission: domain.CommissionRate{
			Rate:   decimal.NewFromFloat(0.001),
			MinFee: decimal.NewFromFloat(0.01),
			MaxFee: decimal.NewFromInt(100),
		},
		swapRates:       map[string]decimal.Decimal{},
		defaultSwapRate: decimal.NewFromFloat(0.025),
		onBehalfFee:     decimal.NewFromInt(10),
	}
}

// SetSwapRate 覆盖单个标的的年化掉期利率。
func (p *StaticRateProvider) SetSwapRate(instrument string, rate decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.swapRates[instrument] = rate
}

func (p *StaticRateProvider) CommissionRate(_ context.Context, _ string) (domain.CommissionRate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.commission, nil
}

func (p *StaticRateProvider) SwapRate(_ context.Context, instrument string) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if rate, ok := p.swapRates[instrument]; ok {
		return rate, nil
	}
	return p.defaultSwapRate, nil
}

func (p *StaticRateProvider) OnBehalfFee(_ context.Context) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.onBehalfFee, nil
}
