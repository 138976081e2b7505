package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

// RateCacheRepository 费率参考数据的读穿缓存。
// 命中直接返回，未命中回源并写缓存；缓存故障降级为直接回源。
type RateCacheRepository struct {
	client redis.UniversalClient
	source domain.RateProvider
	prefix string
	ttl    time.Duration
}

// NewRateCacheRepository 创建基于 Redis 的费率读穿缓存。
func NewRateCacheRepository(client redis.UniversalClient, source domain.RateProvider) *RateCacheRepository {
	return &RateCacheRepository{
		client: client,
		source: source,
		prefix: "commission:rate:",
		ttl:    time.Hour,
	}
}

func (r *RateCacheRepository) CommissionRate(ctx context.Context, instrument string) (domain.CommissionRate, error) {
	key := r.prefix + "commission:" + instrument

	if data, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var cached struct {
			Rate   decimal.Decimal `json:"rate"`
			MinFee decimal.Decimal `json:"min_fee"`
			MaxFee decimal.Decimal `json:"max_fee"`
		}
		if json.Unmarshal(data, &cached) == nil {
			return domain.CommissionRate{Rate: cached.Rate, MinFee: cached.MinFee, MaxFee: cached.MaxFee}, nil
		}
	}

	rate, err := r.source.CommissionRate(ctx, instrument)
	if err != nil {
		return domain.CommissionRate{}, err
	}
	if data, err := json.Marshal(map[string]decimal.Decimal{
		"rate": rate.Rate, "min_fee": rate.MinFee, "max_fee": rate.MaxFee,
	}); err == nil {
		r.client.Set(ctx, key, data, r.ttl)
	}
	return rate, nil
}

func (r *RateCacheRepository) SwapRate(ctx context.Context, instrument string) (decimal.Decimal, error) {
	key := r.prefix + "swap:" + instrument

	if raw, err := r.client.Get(ctx, key).Result(); err == nil {
		if rate, perr := decimal.NewFromString(raw); perr == nil {
			return rate, nil
		}
	}

	rate, err := r.source.SwapRate(ctx, instrument)
	if err != nil {
		return decimal.Zero, err
	}
	r.client.Set(ctx, key, rate.String(), r.ttl)
	return rate, nil
}

func (r *RateCacheRepository) OnBehalfFee(ctx context.Context) (decimal.Decimal, error) {
	key := r.prefix + "onbehalf"

	if raw, err := r.client.Get(ctx, key).Result(); err == nil {
		if fee, perr := decimal.NewFromString(raw); perr == nil {
			return fee, nil
		}
	}

	fee, err := r.source.OnBehalfFee(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	r.client.Set(ctx, key, fee.String(), r.ttl)
	return fee, nil
}
