package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrOpenSizeTooSmall = errors.New("open size smaller than ftx size increment")

// OpenSizeError carries the numbers behind a rejected size.
type OpenSizeError struct {
	OrderAmount   decimal.Decimal
	BaseSize      decimal.Decimal
	Precision     int32
	SizeIncrement decimal.Decimal
}

func (e *OpenSizeError) Error() string {
	return fmt.Sprintf("%s: order amount %s base size %s precision %d increment %s",
		ErrOpenSizeTooSmall, e.OrderAmount, e.BaseSize, e.Precision, e.SizeIncrement)
}

func (e *OpenSizeError) Unwrap() error {
	return ErrOpenSizeTooSmall
}

// SizePrecision returns floor(-log10(increment)), computed exactly.
func SizePrecision(increment decimal.Decimal) int32 {
	if increment.Sign() <= 0 {
		return 0
	}
	var p int32
	for decimal.New(1, -p).LessThan(increment) {
		p--
	}
	for decimal.New(1, -(p + 1)).GreaterThanOrEqual(increment) {
		p++
	}
	return p
}

// OpenSize converts a quote amount into a base size rounded down to the
// exchange's size precision. Increasing trades are clamped to buying power.
func OpenSize(orderAmount, buyingPower, refPrice, increment decimal.Decimal, isIncrease bool) (decimal.Decimal, error) {
	if refPrice.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("invalid reference price %s", refPrice)
	}
	if isIncrease && buyingPower.LessThan(orderAmount) {
		orderAmount = buyingPower
	}
	precision := SizePrecision(increment)
	baseSize := orderAmount.Div(refPrice).RoundDown(precision)
	if baseSize.LessThan(increment) {
		return decimal.Zero, &OpenSizeError{
			OrderAmount:   orderAmount,
			BaseSize:      baseSize,
			Precision:     precision,
			SizeIncrement: increment,
		}
	}
	return baseSize, nil
}
