package domain

import "github.com/shopspring/decimal"

var daysPerYear = decimal.NewFromInt(365)

// CommissionRate 佣金费率与上下限约束。
type CommissionRate struct {
	Rate   decimal.Decimal
	MinFee decimal.Decimal
	MaxFee decimal.Decimal
}

// CalculateCommission 订单佣金 = |数量| × 价格 × 费率，并施加上下限。
func CalculateCommission(volume, price decimal.Decimal, rate CommissionRate) decimal.Decimal {
	fee := volume.Abs().Mul(price).Mul(rate.Rate)
	if rate.MinFee.IsPositive() && fee.LessThan(rate.MinFee) {
		fee = rate.MinFee
	}
	if rate.MaxFee.IsPositive() && fee.GreaterThan(rate.MaxFee) {
		fee = rate.MaxFee
	}
	return fee
}

// CalculateOvernightSwap 单日隔夜利息 = |数量| × 收盘价 × 年化掉期利率 / 365。
// 利率符号决定方向：正利率为持仓成本，负利率为持仓收益。
func CalculateOvernightSwap(volume, closePrice, swapRate decimal.Decimal) decimal.Decimal {
	return volume.Abs().Mul(closePrice).Mul(swapRate).Div(daysPerYear)
}

// CalculateOnBehalfFee 代客操作费 = 操作次数 × 单次费用。
func CalculateOnBehalfFee(actionsCount int, feePerAction decimal.Decimal) decimal.Decimal {
	return feePerAction.Mul(decimal.NewFromInt(int64(actionsCount)))
}
