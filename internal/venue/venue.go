// Package venue holds the types and interfaces shared by the decision core and
// the two venue adapters: the on-chain perpetual market and the off-chain
// exchange.
package venue

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Name identifies a venue in logs, metrics and the risk gate.
type Name string

const (
	Perp Name = "perp"
	FTX  Name = "ftx"
)

// Side is the direction of an on-chain position change.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the side that reduces a position opened on s.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// AmountType says which token an on-chain amount is denominated in.
type AmountType int

const (
	AmountQuote AmountType = iota
	AmountBase
)

func (a AmountType) String() string {
	if a == AmountBase {
		return "BASE"
	}
	return "QUOTE"
}

// OrderSide is the direction of an off-chain order.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

var ErrGasFeeTooHigh = errors.New("estimated gas fee exceeds ceiling")

// Quote is the simulated result of an on-chain swap.
type Quote struct {
	DeltaAvailableQuote decimal.Decimal
	DeltaAvailableBase  decimal.Decimal
}

// AvgPrice is the average execution price of the simulated swap.
func (q Quote) AvgPrice() (decimal.Decimal, error) {
	if q.DeltaAvailableBase.IsZero() {
		return decimal.Zero, errors.New("quote returned zero base amount")
	}
	return q.DeltaAvailableQuote.Div(q.DeltaAvailableBase).Abs(), nil
}

// OpenPositionRequest describes an on-chain position change. Limit and
// MaxGasFeeETH are optional.
type OpenPositionRequest struct {
	BaseToken    common.Address
	Side         Side
	AmountType   AmountType
	Amount       decimal.Decimal
	Limit        *decimal.Decimal
	MaxGasFeeETH *decimal.Decimal
	ReferralCode string
}

type TxResult struct {
	Hash      string
	GasUsed   uint64
	GasFeeETH decimal.Decimal
}

// Order is an off-chain order. A nil Price means market price.
type Order struct {
	Market   string
	Side     OrderSide
	Price    *decimal.Decimal
	Size     decimal.Decimal
	Type     OrderType
	ClientID string
}

type OrderResult struct {
	ID         string
	ClientID   string
	Status     string
	FilledSize decimal.Decimal
}

// AccountInfo is the off-chain account summary. MarginFraction is nil when
// the venue reports no ratio.
type AccountInfo struct {
	MarginFraction *decimal.Decimal
	Collateral     decimal.Decimal
	FreeCollateral decimal.Decimal
}

type MarketInfo struct {
	Name           string
	SizeIncrement  decimal.Decimal
	PriceIncrement decimal.Decimal
	Price          decimal.Decimal
}

// Pool is the on-chain market metadata for one base token.
type Pool struct {
	Address     common.Address
	BaseAddress common.Address
	BaseSymbol  string
	QuoteSymbol string
}

// PerpVenue is the on-chain perpetual market as consumed by the core. A zero
// sqrtPriceLimitX96 means no price limit.
type PerpVenue interface {
	TotalPositionSize(ctx context.Context, trader, baseToken common.Address) (decimal.Decimal, error)
	TotalPositionValue(ctx context.Context, trader, baseToken common.Address) (decimal.Decimal, error)
	MarginRatio(ctx context.Context, trader common.Address) (*decimal.Decimal, error)
	BuyingPower(ctx context.Context, trader common.Address) (decimal.Decimal, error)
	Quote(ctx context.Context, baseToken common.Address, side Side, amountType AmountType, amount, sqrtPriceLimitX96 decimal.Decimal) (Quote, error)
	OpenPosition(ctx context.Context, req OpenPositionRequest) (TxResult, error)
	EstimateOpenPositionGasFee(ctx context.Context, req OpenPositionRequest) (decimal.Decimal, error)
}

// ExchangeVenue is the off-chain exchange as consumed by the core.
type ExchangeVenue interface {
	Price(ctx context.Context, market string) (decimal.Decimal, error)
	PositionSize(ctx context.Context, market string) (decimal.Decimal, error)
	AccountInfo(ctx context.Context) (AccountInfo, error)
	PlaceOrder(ctx context.Context, order Order) (OrderResult, error)
}
