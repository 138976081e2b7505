package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/commission/internal/commission/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateCommission(t *testing.T) {
	rate := domain.CommissionRate{
		Rate:   d("0.001"),
		MinFee: d("0.5"),
		MaxFee: d("100"),
	}

	tests := []struct {
		name   string
		volume string
		price  string
		want   string
	}{
		{"plain", "10", "150", "1.5"},
		{"short volume uses absolute value", "-10", "150", "1.5"},
		{"clamped to min fee", "1", "100", "0.5"},
		{"clamped to max fee", "10000", "150", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.CalculateCommission(d(tt.volume), d(tt.price), rate)
			assert.True(t, got.Equal(d(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCalculateCommissionWithoutBounds(t *testing.T) {
	rate := domain.CommissionRate{Rate: d("0.001")}
	got := domain.CalculateCommission(d("1"), d("1"), rate)
	assert.True(t, got.Equal(d("0.001")), "zero min/max must not clamp, got %s", got)
}

func TestCalculateOvernightSwap(t *testing.T) {
	// 100 × 365 × 0.0365 / 365 = 3.65
	got := domain.CalculateOvernightSwap(d("100"), d("365"), d("0.0365"))
	assert.True(t, got.Equal(d("3.65")), "got %s", got)

	// 负利率意味着持仓收益，金额为负
	got = domain.CalculateOvernightSwap(d("-100"), d("365"), d("-0.0365"))
	assert.True(t, got.Equal(d("-3.65")), "got %s", got)
}

func TestCalculateOnBehalfFee(t *testing.T) {
	got := domain.CalculateOnBehalfFee(3, d("10"))
	assert.True(t, got.Equal(d("30")), "got %s", got)

	got = domain.CalculateOnBehalfFee(0, d("10"))
	assert.True(t, got.IsZero())
}
