package strategy

import (
	"perp-ftx-arb/internal/venue"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionNone  Action = "NONE"
	ActionShort Action = "SHORT"
	ActionLong  Action = "LONG"
)

// PerpSide is the on-chain side of the action. The off-chain leg takes the
// opposite direction.
func (a Action) PerpSide() venue.Side {
	if a == ActionLong {
		return venue.SideLong
	}
	return venue.SideShort
}

func (a Action) FTXSide() venue.OrderSide {
	if a == ActionLong {
		return venue.OrderSell
	}
	return venue.OrderBuy
}

type Spreads struct {
	Short decimal.Decimal
	Long  decimal.Decimal
}

// Spread is the relative premium of the on-chain execution price over the
// off-chain reference price.
func Spread(perpPrice, refPrice decimal.Decimal) decimal.Decimal {
	if refPrice.IsZero() {
		return decimal.Zero
	}
	return perpPrice.Sub(refPrice).Div(refPrice)
}

func ComputeSpreads(perpShortPrice, perpLongPrice, refPrice decimal.Decimal) Spreads {
	return Spreads{
		Short: Spread(perpShortPrice, refPrice),
		Long:  Spread(perpLongPrice, refPrice),
	}
}

// Trigger checks the short side first, so it wins when both would fire.
func Trigger(s Spreads, shortTrigger, longTrigger decimal.Decimal) Action {
	if s.Short.GreaterThan(shortTrigger) {
		return ActionShort
	}
	if s.Long.LessThan(longTrigger) {
		return ActionLong
	}
	return ActionNone
}

// IsIncrease reports whether the action grows the magnitude of the current
// on-chain position. A flat position is always increased.
func IsIncrease(action Action, perpPositionSize decimal.Decimal) bool {
	switch action {
	case ActionShort:
		return perpPositionSize.Sign() <= 0
	case ActionLong:
		return perpPositionSize.Sign() >= 0
	default:
		return false
	}
}

// ReduceSide is the on-chain side that would shrink the current position.
func ReduceSide(perpPositionSize decimal.Decimal) venue.Side {
	if perpPositionSize.Sign() <= 0 {
		return venue.SideLong
	}
	return venue.SideShort
}

// ExposureBlocked is true when an increasing action meets unhealthy margin on
// either venue. Reducing actions are never blocked.
func ExposureBlocked(isIncrease, perpBelow, ftxBelow bool) bool {
	return isIncrease && (perpBelow || ftxBelow)
}
