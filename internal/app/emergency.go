package app

import (
	"context"

	"perp-ftx-arb/internal/alerts"
	"perp-ftx-arb/internal/exec"
	"perp-ftx-arb/internal/market"
	"perp-ftx-arb/internal/strategy"
	"perp-ftx-arb/internal/venue"

	"go.uber.org/zap"
)

// EmergencyReduceRoutine shrinks both legs of every opted-in market while
// either venue is below its emergency margin ratio.
func (a *App) EmergencyReduceRoutine(ctx context.Context) error {
	for {
		a.health.MarkAlive(ctx, routineEmergency)
		if err := a.emergencyTick(ctx); err != nil && ctx.Err() == nil {
			a.fail(ctx, routineEmergency, eventEmergencyRoutineError, "", err)
		}
		if err := a.sleep(ctx, a.cfg.Strategy.EmergencyReduceCheckInterval); err != nil {
			return err
		}
	}
}

func (a *App) emergencyTick(ctx context.Context) error {
	ftxBelow, err := a.gate.IsBelowFTXMarginRatio(ctx, a.limits.ftxEmergency)
	if err != nil {
		return err
	}
	perpBelow, err := a.gate.IsBelowPerpMarginRatio(ctx, a.limits.perpEmergency)
	if err != nil {
		return err
	}
	if !ftxBelow && !perpBelow {
		return nil
	}
	a.log.Warn("entering emergency reduce mode",
		zap.String("event", eventEnterEmergency),
		zap.Bool("is_below_ftx_margin_ratio", ftxBelow),
		zap.Bool("is_below_perp_margin_ratio", perpBelow),
		zap.String("perp_emergency_margin_ratio", a.limits.perpEmergency.String()),
		zap.String("ftx_emergency_margin_ratio", a.limits.ftxEmergency.String()),
	)
	if err := a.alerts.Notify(ctx, alerts.Alert{Event: eventEnterEmergency}); err != nil {
		a.log.Warn("alert delivery failed", zap.String("alert", eventEnterEmergency), zap.Error(err))
	}

	var tasks []func(context.Context) error
	for _, m := range a.registry.All() {
		if !m.EmergencyReduceEnabled {
			continue
		}
		tasks = append(tasks,
			a.legTask(m, a.emergencyReducePerp),
			a.legTask(m, a.emergencyReduceFTX),
		)
	}
	// Leg failures are logged per leg and never stop the cooldown.
	_ = exec.Settle(ctx, tasks...)
	return a.sleep(ctx, a.cfg.Strategy.EmergencyReduceSleep)
}

func (a *App) legTask(m *market.Market, reduce func(context.Context, *market.Market) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := reduce(ctx, m)
		if err != nil && ctx.Err() == nil {
			a.fail(ctx, routineEmergency, eventEmergencyRoutineError, m.Name, err)
		}
		return err
	}
}

func (a *App) emergencyReducePerp(ctx context.Context, m *market.Market) error {
	value, err := a.perp.TotalPositionValue(ctx, a.trader, m.BaseToken)
	if err != nil {
		return err
	}
	plan, ok := strategy.PlanPerpReduction(value, a.limits.emergencyAmount, a.limits.dust)
	if !ok {
		a.log.Info("position value too small to reduce",
			zap.String("event", eventEmergencyValueTooSmall),
			zap.String("market", m.Name),
			zap.String("position_value", value.String()),
		)
		return nil
	}
	a.log.Info("emergency reduce perp position",
		zap.String("event", eventEmergencyReducePerp),
		zap.String("market", m.Name),
		zap.String("reduce_amount", plan.Amount.String()),
		zap.String("position_value", value.String()),
	)
	a.metrics.EmergencyReductions.Inc()
	_, err = a.executor.OpenPosition(ctx, m.Name, exec.PurposeEmergency, venue.OpenPositionRequest{
		BaseToken:    m.BaseToken,
		Side:         plan.Side,
		AmountType:   venue.AmountQuote,
		Amount:       plan.Amount,
		ReferralCode: a.referral,
	})
	return err
}

func (a *App) emergencyReduceFTX(ctx context.Context, m *market.Market) error {
	size, err := a.ftx.PositionSize(ctx, m.FTXMarketName)
	if err != nil {
		return err
	}
	if size.IsZero() {
		return nil
	}
	price, err := a.ftx.Price(ctx, m.FTXMarketName)
	if err != nil {
		return err
	}
	plan, ok := strategy.PlanFTXReduction(size, a.limits.emergencyAmount, price, m.FTXSizeIncrement)
	if !ok {
		return nil
	}
	a.log.Info("emergency reduce ftx position",
		zap.String("event", eventEmergencyReduceFTX),
		zap.String("market", m.Name),
		zap.String("reduce_size", plan.Size.String()),
		zap.String("position_size", size.String()),
	)
	a.metrics.EmergencyReductions.Inc()
	_, err = a.executor.PlaceOrder(ctx, m.Name, exec.PurposeEmergency, venue.Order{
		Market: m.FTXMarketName,
		Side:   plan.Side,
		Size:   plan.Size,
	})
	return err
}
