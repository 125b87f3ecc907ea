package checkout

import "github.com/shopspring/decimal"

var (
	hundred        = decimal.NewFromInt(100)
	roundingUnit   = decimal.NewFromInt(1000)
	returnedFactor = decimal.NewFromFloat(0.8)
	decimalOne     = decimal.NewFromInt(1)
)

// UnitPrice applies the item discount then the coupon percent and rounds up to the next 1000.
func UnitPrice(price int64, discountPercent, couponPercent int) int64 {
	return roundUp(discounted(price, discountPercent, couponPercent))
}

// ReturnedUnitPrice prices a unit drawn from returned stock at a further 20% off.
func ReturnedUnitPrice(price int64, discountPercent, couponPercent int) int64 {
	return roundUp(discounted(price, discountPercent, couponPercent).Mul(returnedFactor))
}

func discounted(price int64, discountPercent, couponPercent int) decimal.Decimal {
	return decimal.NewFromInt(price).
		Mul(decimalOne.Sub(decimal.NewFromInt(int64(discountPercent)).Div(hundred))).
		Mul(decimalOne.Sub(decimal.NewFromInt(int64(couponPercent)).Div(hundred)))
}

func roundUp(amount decimal.Decimal) int64 {
	if amount.IsNegative() {
		return 0
	}
	return amount.Div(roundingUnit).Ceil().Mul(roundingUnit).IntPart()
}
