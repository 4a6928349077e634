package strategy

import (
	"perp-ftx-arb/internal/venue"

	"github.com/shopspring/decimal"
)

// IsImbalanced reports whether the two legs fail to net to within one size
// increment. Legs are expected to carry opposite signs.
func IsImbalanced(perpSize, ftxSize, increment decimal.Decimal) bool {
	return perpSize.Add(ftxSize).Abs().GreaterThanOrEqual(increment)
}

// Correction is the single order that closes an imbalance episode. Only the
// side matching Venue is set.
type Correction struct {
	Venue         venue.Name
	Diff          decimal.Decimal
	Size          decimal.Decimal
	PerpSide      venue.Side
	FTXSide       venue.OrderSide
	IsReduceOnFTX bool
}

// PlanCorrection sizes the correction to the full imbalance. The off-chain
// leg is reduced when it is strictly larger or its margin is unhealthy;
// otherwise the on-chain leg is reduced. Ties go on-chain. An on-chain
// correction leaves a magnitude of |ftxSize| <= |perpSize|, so it never grows
// exposure.
func PlanCorrection(perpSize, ftxSize decimal.Decimal, ftxBelowMargin bool) Correction {
	diff := ftxSize.Add(perpSize)
	c := Correction{
		Diff:          diff,
		Size:          diff.Abs(),
		IsReduceOnFTX: ftxSize.Abs().GreaterThan(perpSize.Abs()),
	}
	if c.IsReduceOnFTX || ftxBelowMargin {
		c.Venue = venue.FTX
		c.FTXSide = venue.OrderBuy
		if diff.Sign() > 0 {
			c.FTXSide = venue.OrderSell
		}
		return c
	}
	c.Venue = venue.Perp
	c.PerpSide = venue.SideLong
	if diff.Sign() > 0 {
		c.PerpSide = venue.SideShort
	}
	return c
}
