package app

import (
	"context"
	"errors"
	"sync"

	"perp-ftx-arb/internal/exec"
	"perp-ftx-arb/internal/market"
	"perp-ftx-arb/internal/state"
	"perp-ftx-arb/internal/strategy"
	"perp-ftx-arb/internal/timescale"
	"perp-ftx-arb/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcomes of one arbitrage evaluation, as stored in the last-tick snapshot.
const (
	outcomeSkippedImbalance = "skipped_imbalance"
	outcomeGasFeeTooHigh    = "gas_fee_too_high"
	outcomeNotTriggered     = "not_triggered"
	outcomeExposureBlocked  = "exposure_blocked"
	outcomeSizeTooSmall     = "size_too_small"
	outcomeExecuted         = "executed"
	outcomeFailed           = "failed"
)

// ArbitrageRoutine evaluates every market in parallel each tick.
func (a *App) ArbitrageRoutine(ctx context.Context) error {
	for {
		a.health.MarkAlive(ctx, routineArbitrage)
		a.arbitrageTick(ctx)
		if err := a.sleep(ctx, a.cfg.Strategy.PriceCheckInterval); err != nil {
			return err
		}
	}
}

func (a *App) arbitrageTick(ctx context.Context) {
	var wg sync.WaitGroup
	for _, m := range a.registry.All() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.arbitrage(ctx, m); err != nil && ctx.Err() == nil {
				a.fail(ctx, routineArbitrage, eventArbitrageError, m.Name, err)
			}
		}()
	}
	wg.Wait()
}

// evaluation collects what one arbitrage tick saw, for the sinks.
type evaluation struct {
	outcome  string
	action   strategy.Action
	ftxPrice decimal.Decimal
	short    decimal.Decimal
	long     decimal.Decimal
	spreads  strategy.Spreads
	perpPos  decimal.Decimal
	ftxPos   decimal.Decimal
	priced   bool
}

func (a *App) arbitrage(ctx context.Context, m *market.Market) error {
	ev := evaluation{action: strategy.ActionNone}
	defer a.recordEvaluation(ctx, m, &ev)

	if m.IsImbalanceOpen() {
		ev.outcome = outcomeSkippedImbalance
		a.log.Info("imbalance episode open, skipping arbitrage",
			zap.String("event", eventSkipDueToImbalance),
			zap.String("market", m.Name),
		)
		return nil
	}

	var (
		perpBelow, ftxBelow   bool
		shortQuote, longQuote venue.Quote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		perpBelow, err = a.gate.IsBelowPerpMarginRatio(gctx, a.limits.perpMin)
		return err
	})
	g.Go(func() (err error) {
		ftxBelow, err = a.gate.IsBelowFTXMarginRatio(gctx, a.limits.ftxMin)
		return err
	})
	g.Go(func() (err error) {
		ev.perpPos, err = a.perp.TotalPositionSize(gctx, a.trader, m.BaseToken)
		return err
	})
	g.Go(func() (err error) {
		ev.ftxPos, err = a.ftx.PositionSize(gctx, m.FTXMarketName)
		return err
	})
	g.Go(func() (err error) {
		ev.ftxPrice, err = a.ftx.Price(gctx, m.FTXMarketName)
		return err
	})
	g.Go(func() (err error) {
		shortQuote, err = a.perp.Quote(gctx, m.BaseToken, venue.SideShort, venue.AmountQuote, m.OrderAmount, decimal.Zero)
		return err
	})
	g.Go(func() (err error) {
		longQuote, err = a.perp.Quote(gctx, m.BaseToken, venue.SideLong, venue.AmountQuote, m.OrderAmount, decimal.Zero)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if strategy.IsImbalanced(ev.perpPos, ev.ftxPos, m.FTXSizeIncrement) {
		ev.outcome = outcomeSkippedImbalance
		a.log.Info("legs imbalanced, skipping arbitrage",
			zap.String("event", eventSkipDueToImbalance),
			zap.String("market", m.Name),
			zap.String("perp_position_size", ev.perpPos.String()),
			zap.String("ftx_position_size", ev.ftxPos.String()),
		)
		return nil
	}

	var err error
	if ev.short, err = shortQuote.AvgPrice(); err != nil {
		return err
	}
	if ev.long, err = longQuote.AvgPrice(); err != nil {
		return err
	}
	ev.spreads = strategy.ComputeSpreads(ev.short, ev.long, ev.ftxPrice)
	ev.priced = true
	a.log.Info("spread",
		zap.String("event", eventSpread),
		zap.String("market", m.Name),
		zap.String("ftx_price", ev.ftxPrice.String()),
		zap.String("perp_short_avg_price", ev.short.String()),
		zap.String("perp_long_avg_price", ev.long.String()),
		zap.String("short_trigger_spread", m.ShortTriggerSpread.String()),
		zap.String("cur_short_spread", ev.spreads.Short.String()),
		zap.String("cur_long_spread", ev.spreads.Long.String()),
		zap.String("long_trigger_spread", m.LongTriggerSpread.String()),
	)
	a.logPositions(eventPositionSizeBefore, m, ev.perpPos, ev.ftxPos)

	// The gas probe uses the reducing side, which every trigger can take.
	fee, err := a.perp.EstimateOpenPositionGasFee(ctx, venue.OpenPositionRequest{
		BaseToken:    m.BaseToken,
		Side:         strategy.ReduceSide(ev.perpPos),
		AmountType:   venue.AmountQuote,
		Amount:       m.OrderAmount,
		ReferralCode: a.referral,
	})
	if err != nil {
		return err
	}
	if fee.GreaterThan(a.limits.arbitrageMaxGas) {
		ev.outcome = outcomeGasFeeTooHigh
		a.metrics.GasFeeTooHigh.Inc()
		a.log.Info("gas fee too high",
			zap.String("event", eventGasFeeTooHigh),
			zap.String("market", m.Name),
			zap.String("estimated_gas_fee", fee.String()),
			zap.String("arbitrage_max_gas_fee_eth", a.limits.arbitrageMaxGas.String()),
		)
		return nil
	}

	ev.action = strategy.Trigger(ev.spreads, m.ShortTriggerSpread, m.LongTriggerSpread)
	if ev.action == strategy.ActionNone {
		ev.outcome = outcomeNotTriggered
		a.log.Info("not triggered", zap.String("event", eventNotTriggered), zap.String("market", m.Name))
		return a.afterTrade(ctx, m, &ev)
	}

	isIncrease := strategy.IsIncrease(ev.action, ev.perpPos)
	if strategy.ExposureBlocked(isIncrease, perpBelow, ftxBelow) {
		ev.outcome = outcomeExposureBlocked
		a.log.Info("margin too low to increase perp position",
			zap.String("event", eventShouldNotIncrease),
			zap.String("market", m.Name),
			zap.String("action", string(ev.action)),
			zap.Bool("is_below_perp_margin_ratio", perpBelow),
			zap.Bool("is_below_ftx_margin_ratio", ftxBelow),
			zap.String("perp_min_margin_ratio", a.limits.perpMin.String()),
			zap.String("ftx_min_margin_ratio", a.limits.ftxMin.String()),
		)
		return nil
	}

	buyingPower, err := a.perp.BuyingPower(ctx, a.trader)
	if err != nil {
		return err
	}
	size, err := strategy.OpenSize(m.OrderAmount, buyingPower, ev.ftxPrice, m.FTXSizeIncrement, isIncrease)
	if err != nil {
		ev.outcome = outcomeSizeTooSmall
		var sizeErr *strategy.OpenSizeError
		if errors.As(err, &sizeErr) {
			a.log.Error("open size smaller than ftx size increment",
				zap.String("event", eventOpenSizeTooSmall),
				zap.String("market", m.Name),
				zap.String("open_order_amount", sizeErr.OrderAmount.String()),
				zap.String("base_size", sizeErr.BaseSize.String()),
				zap.Int32("precision", sizeErr.Precision),
				zap.String("ftx_size_increment", sizeErr.SizeIncrement.String()),
			)
		}
		return err
	}

	event := eventShortArbitrage
	if ev.action == strategy.ActionLong {
		event = eventLongArbitrage
	}
	a.log.Info("arbitrage triggered",
		zap.String("event", event),
		zap.String("market", m.Name),
		zap.String("size", size.String()),
		zap.String("ftx_size_increment", m.FTXSizeIncrement.String()),
		zap.Bool("is_increase", isIncrease),
	)
	a.enqueuePositions(m, "before", ev.perpPos, ev.ftxPos)
	a.metrics.ArbitrageExecuted.Inc()
	_, err = a.executor.PlacePair(ctx, m.Name, exec.PurposeArbitrage,
		venue.OpenPositionRequest{
			BaseToken:    m.BaseToken,
			Side:         ev.action.PerpSide(),
			AmountType:   venue.AmountBase,
			Amount:       size,
			ReferralCode: a.referral,
		},
		venue.Order{
			Market: m.FTXMarketName,
			Side:   ev.action.FTXSide(),
			Size:   size,
		},
	)
	if err != nil {
		ev.outcome = outcomeFailed
		return err
	}
	ev.outcome = outcomeExecuted
	return a.afterTrade(ctx, m, &ev)
}

// afterTrade re-reads both legs for observability only.
func (a *App) afterTrade(ctx context.Context, m *market.Market, ev *evaluation) error {
	var perpPos, ftxPos decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
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
	ev.perpPos, ev.ftxPos = perpPos, ftxPos
	a.logPositions(eventPositionSizeAfter, m, perpPos, ftxPos)
	if ev.outcome == outcomeExecuted {
		a.enqueuePositions(m, "after", perpPos, ftxPos)
	}
	return nil
}

func (a *App) logPositions(event string, m *market.Market, perpPos, ftxPos decimal.Decimal) {
	a.log.Info("position sizes",
		zap.String("event", event),
		zap.String("market", m.Name),
		zap.String("perp_position_size", perpPos.String()),
		zap.String("ftx_position_size", ftxPos.String()),
	)
}

func (a *App) enqueuePositions(m *market.Market, phase string, perpPos, ftxPos decimal.Decimal) {
	a.timescale.EnqueuePosition(timescale.PositionSnapshot{
		Time:         a.now().UTC(),
		Market:       m.Name,
		Phase:        phase,
		PerpPosition: perpPos.InexactFloat64(),
		FTXPosition:  ftxPos.InexactFloat64(),
	})
}

// recordEvaluation writes the last-tick snapshot and, once prices are known,
// a spread sample. Errored ticks without an outcome are not recorded.
func (a *App) recordEvaluation(ctx context.Context, m *market.Market, ev *evaluation) {
	if ev.outcome == "" {
		return
	}
	now := a.now()
	if ev.priced {
		a.timescale.EnqueueSpread(timescale.SpreadSample{
			Time:        now.UTC(),
			Market:      m.Name,
			FTXPrice:    ev.ftxPrice.InexactFloat64(),
			ShortPrice:  ev.short.InexactFloat64(),
			LongPrice:   ev.long.InexactFloat64(),
			ShortSpread: ev.spreads.Short.InexactFloat64(),
			LongSpread:  ev.spreads.Long.InexactFloat64(),
			Action:      string(ev.action),
		})
	}
	if a.store == nil {
		return
	}
	snap := state.ArbitrageSnapshot{
		Market:       m.Name,
		Outcome:      ev.outcome,
		Action:       string(ev.action),
		FTXPrice:     ev.ftxPrice.InexactFloat64(),
		ShortPrice:   ev.short.InexactFloat64(),
		LongPrice:    ev.long.InexactFloat64(),
		ShortSpread:  ev.spreads.Short.InexactFloat64(),
		LongSpread:   ev.spreads.Long.InexactFloat64(),
		PerpPosition: ev.perpPos.InexactFloat64(),
		FTXPosition:  ev.ftxPos.InexactFloat64(),
		UpdatedAtMS:  now.UnixMilli(),
	}
	if err := state.SaveArbitrageSnapshot(ctx, a.store, snap); err != nil {
		a.log.Warn("failed to save arbitrage snapshot", zap.String("market", m.Name), zap.Error(err))
	}
}
