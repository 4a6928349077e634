package strategy

import (
	"context"
	"fmt"

	"perp-ftx-arb/internal/venue"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PerpMarginSource interface {
	MarginRatio(ctx context.Context, trader common.Address) (*decimal.Decimal, error)
}

type FTXAccountSource interface {
	AccountInfo(ctx context.Context) (venue.AccountInfo, error)
}

// Gate evaluates venue margin health against a criterion. An unknown ratio
// never counts as unhealthy.
type Gate struct {
	perp   PerpMarginSource
	ftx    FTXAccountSource
	trader common.Address
	log    *zap.Logger
}

func NewGate(perp PerpMarginSource, ftx FTXAccountSource, trader common.Address, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{perp: perp, ftx: ftx, trader: trader, log: log}
}

// IsBelow fetches the venue's margin ratio and reports whether it is present
// and strictly below criterion. Query failures propagate.
func (g *Gate) IsBelow(ctx context.Context, v venue.Name, criterion decimal.Decimal) (bool, error) {
	switch v {
	case venue.Perp:
		return g.IsBelowPerpMarginRatio(ctx, criterion)
	case venue.FTX:
		return g.IsBelowFTXMarginRatio(ctx, criterion)
	default:
		return false, fmt.Errorf("unknown venue %q", v)
	}
}

func (g *Gate) IsBelowPerpMarginRatio(ctx context.Context, criterion decimal.Decimal) (bool, error) {
	ratio, err := g.perp.MarginRatio(ctx, g.trader)
	if err != nil {
		return false, fmt.Errorf("perp margin ratio: %w", err)
	}
	g.log.Info("perp margin ratio", zap.String("event", "PerpMarginRatio"), MarginRatioField(ratio))
	return IsBelowMarginRatio(ratio, criterion), nil
}

func (g *Gate) IsBelowFTXMarginRatio(ctx context.Context, criterion decimal.Decimal) (bool, error) {
	info, err := g.ftx.AccountInfo(ctx)
	if err != nil {
		return false, fmt.Errorf("ftx account info: %w", err)
	}
	g.log.Info("ftx margin ratio", zap.String("event", "FTXMarginRatio"), MarginRatioField(info.MarginFraction))
	return IsBelowMarginRatio(info.MarginFraction, criterion), nil
}

func IsBelowMarginRatio(ratio *decimal.Decimal, criterion decimal.Decimal) bool {
	return ratio != nil && ratio.LessThan(criterion)
}

// MarginRatioField logs a missing ratio as JSON null.
func MarginRatioField(ratio *decimal.Decimal) zap.Field {
	if ratio == nil {
		return zap.Reflect("margin_ratio", nil)
	}
	return zap.Float64("margin_ratio", ratio.InexactFloat64())
}
