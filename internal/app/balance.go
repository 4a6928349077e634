package app

import (
	"context"

	"perp-ftx-arb/internal/exec"
	"perp-ftx-arb/internal/market"
	"perp-ftx-arb/internal/strategy"
	"perp-ftx-arb/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BalanceRoutine checks markets one at a time so each check sees the margin
// left by the previous correction.
func (a *App) BalanceRoutine(ctx context.Context) error {
	for {
		a.health.MarkAlive(ctx, routineBalance)
		for _, m := range a.registry.All() {
			if err := a.balance(ctx, m); err != nil && ctx.Err() == nil {
				a.fail(ctx, routineBalance, eventBalanceError, m.Name, err)
			}
		}
		if err := a.sleep(ctx, a.cfg.Strategy.BalanceCheckInterval); err != nil {
			return err
		}
	}
}

func (a *App) balance(ctx context.Context, m *market.Market) error {
	var (
		ftxBelow        bool
		perpPos, ftxPos decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ftxBelow, err = a.gate.IsBelowFTXMarginRatio(gctx, a.limits.ftxMin)
		return err
	})
	g.Go(func() (err error) {
		perpPos, err = a.perp.TotalPositionSize(gctx, a.trader, m.BaseToken)
		return err
	})
	g.Go(func() (err error) {
		ftxPos, err = a.ftx.PositionSize(gctx, m.FTXMarketName)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	imbalanced := strategy.IsImbalanced(perpPos, ftxPos, m.FTXSizeIncrement)
	decision, elapsed := a.tracker.Observe(m, imbalanced, a.now())
	if decision == market.DecisionInSync {
		return nil
	}
	start, _ := m.ImbalanceStart()
	a.log.Info("legs imbalanced",
		zap.String("event", eventImbalance),
		zap.String("market", m.Name),
		zap.String("perp_position_size", perpPos.String()),
		zap.String("ftx_position_size", ftxPos.String()),
		zap.Int64("ts", start.UnixMilli()),
		zap.Duration("elapsed", elapsed),
		zap.Stringer("decision", decision),
	)
	if decision != market.DecisionCorrect {
		return nil
	}
	// One attempt per episode, whatever the outcome.
	defer a.tracker.Complete(m)

	plan := strategy.PlanCorrection(perpPos, ftxPos, ftxBelow)
	a.metrics.BalanceCorrections.Inc()
	if plan.Venue == venue.FTX {
		a.log.Info("balance on ftx",
			zap.String("event", eventBalanceOnFTX),
			zap.String("market", m.Name),
			zap.String("position_size_diff", plan.Diff.String()),
			zap.Bool("is_reduce_on_ftx", plan.IsReduceOnFTX),
			zap.Bool("is_below_ftx_margin_ratio", ftxBelow),
		)
		_, err := a.executor.PlaceOrder(ctx, m.Name, exec.PurposeBalance, venue.Order{
			Market: m.FTXMarketName,
			Side:   plan.FTXSide,
			Size:   plan.Size,
		})
		return err
	}
	a.log.Info("balance on perp",
		zap.String("event", eventBalanceOnPerp),
		zap.String("market", m.Name),
		zap.String("position_size_diff", plan.Diff.String()),
		zap.Bool("is_reduce_on_ftx", plan.IsReduceOnFTX),
		zap.Bool("is_below_ftx_margin_ratio", ftxBelow),
	)
	maxGas := a.limits.balanceMaxGas
	_, err := a.executor.OpenPosition(ctx, m.Name, exec.PurposeBalance, venue.OpenPositionRequest{
		BaseToken:    m.BaseToken,
		Side:         plan.PerpSide,
		AmountType:   venue.AmountBase,
		Amount:       plan.Size,
		MaxGasFeeETH: &maxGas,
		ReferralCode: a.referral,
	})
	return err
}
