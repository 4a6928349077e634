package strategy

import (
	"perp-ftx-arb/internal/venue"

	"github.com/shopspring/decimal"
)

type PerpReduction struct {
	Amount decimal.Decimal
	Side   venue.Side
}

// PlanPerpReduction sizes a quote-denominated on-chain reduction. Positions
// whose value does not exceed dust are left alone.
func PlanPerpReduction(positionValue, reduceAmount, dust decimal.Decimal) (PerpReduction, bool) {
	if positionValue.Abs().LessThanOrEqual(dust) {
		return PerpReduction{}, false
	}
	side := venue.SideLong
	if positionValue.Sign() > 0 {
		side = venue.SideShort
	}
	return PerpReduction{
		Amount: decimal.Min(reduceAmount, positionValue.Abs()),
		Side:   side,
	}, true
}

type FTXReduction struct {
	Size decimal.Decimal
	Side venue.OrderSide
}

// PlanFTXReduction sizes an off-chain reduction of at most reduceAmount worth
// of base, rounded down to the increment's precision. Sizes below one
// increment are skipped.
func PlanFTXReduction(positionSize, reduceAmount, price, increment decimal.Decimal) (FTXReduction, bool) {
	if positionSize.IsZero() || price.Sign() <= 0 {
		return FTXReduction{}, false
	}
	size := decimal.Min(positionSize.Abs(), reduceAmount.Div(price)).RoundDown(SizePrecision(increment))
	if size.LessThan(increment) {
		return FTXReduction{}, false
	}
	side := venue.OrderBuy
	if positionSize.Sign() > 0 {
		side = venue.OrderSell
	}
	return FTXReduction{Size: size, Side: side}, true
}
