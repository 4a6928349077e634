package perp

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Virtual tokens, positions and account values are 18-decimal fixed point.
const (
	tokenDecimals = 18
	ethDecimals   = 18
	ratioDecimals = 6
)

func fromWei(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// toWei truncates any precision below one unit of the smallest denomination.
func toWei(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if d.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", d)
	}
	return d.Shift(decimals).BigInt(), nil
}

// referralBytes encodes a referral code as a right zero-padded bytes32.
func referralBytes(code string) ([32]byte, error) {
	var out [32]byte
	if len(code) > 31 {
		return out, fmt.Errorf("referral code %q longer than 31 bytes", code)
	}
	copy(out[:], code)
	return out, nil
}
