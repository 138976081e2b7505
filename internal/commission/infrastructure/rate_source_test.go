package infrastructure_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/commission/internal/commission/infrastructure"
)

func TestStaticRateProviderSwapRateOverride(t *testing.T) {
	p := infrastructure.NewStaticRateProvider()

	rate, err := p.SwapRate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromFloat(0.025)), "unknown instrument falls back to default, got %s", rate)

	p.SetSwapRate("EURUSD", decimal.NewFromFloat(0.0365))
	rate, err = p.SwapRate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromFloat(0.0365)), "got %s", rate)

	// 其他标的不受覆盖影响
	rate, err = p.SwapRate(context.Background(), "USDJPY")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromFloat(0.025)), "got %s", rate)
}

func TestStaticRateProviderConcurrentAccess(t *testing.T) {
	p := infrastructure.NewStaticRateProvider()

	// 消费者 worker 并发读取的同时更新覆盖项，race detector 下必须干净
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i%2 == 0 {
					p.SetSwapRate("EURUSD", decimal.NewFromInt(int64(j)).Div(decimal.NewFromInt(1000)))
					continue
				}
				if _, err := p.SwapRate(context.Background(), "EURUSD"); err != nil {
					t.Error(err)
					return
				}
				if _, err := p.CommissionRate(context.Background(), "EURUSD"); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
