package affiliate

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Cashback returns sale * baseRate / 100. The network's reported commission
// never enters the calculation.
func Cashback(sale, baseRate decimal.Decimal) decimal.Decimal {
	return sale.Mul(baseRate).Div(hundred)
}
