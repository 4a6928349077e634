package app

import (
	"context"

	"perp-ftx-arb/internal/alerts"

	"go.uber.org/zap"
)

// Routine names double as liveness keys and metric labels.
const (
	routineArbitrage = "ArbitrageRoutine"
	routineBalance   = "BalanceRoutine"
	routineEmergency = "EmergencyReduceRoutine"
)

// Log event names. Operators alert on these, so they are stable.
const (
	eventSpread                 = "Spread"
	eventGasFeeTooHigh          = "GasFeeTooHigh"
	eventNotTriggered           = "NotTriggered"
	eventShortArbitrage         = "ShortArbitrage"
	eventLongArbitrage          = "LongArbitrage"
	eventShouldNotIncrease      = "ShouldNotIncreasePerpPosition"
	eventSkipDueToImbalance     = "SkipArbitrageDueToImbalance"
	eventPositionSizeBefore     = "PositionSizeBefore"
	eventPositionSizeAfter      = "PositionSizeAfter"
	eventOpenSizeTooSmall       = "OpenSizeSmallerThanFTXSizeIncrementError"
	eventImbalance              = "Imbalance"
	eventBalanceOnFTX           = "BalanceOnFTX"
	eventBalanceOnPerp          = "BalanceOnPerp"
	eventEnterEmergency         = "EnterEmergencyReduceMode"
	eventEmergencyReducePerp    = "EmergencyReducePerpPosition"
	eventEmergencyReduceFTX     = "EmergencyReduceFTXPosition"
	eventEmergencyValueTooSmall = "EmergencyReducePositionValueIsTooSmall"
	eventArbitrageError         = "ArbitrageError"
	eventBalanceError           = "BalanceError"
	eventEmergencyRoutineError  = "EmergencyReduceRoutineError"
	eventNoReferralCode         = "NoReferralCode"
	eventGetReferralCodeError   = "GetReferralCodeError"
	eventSetupArbitrageur       = "SetupArbitrageur"
	eventArbitrageurReady       = "Arbitrageur"
)

// fail logs a failed per-market unit, counts it and alerts. market is empty
// for routine-level failures.
func (a *App) fail(ctx context.Context, routine, event, market string, err error) {
	fields := []zap.Field{zap.String("event", event), zap.Error(err)}
	if market != "" {
		fields = append(fields, zap.String("market", market))
	}
	a.log.Error("routine tick failed", fields...)
	a.metrics.TickFailures.Inc(routine, market)
	if nerr := a.alerts.Notify(ctx, alerts.Alert{Event: event, Market: market, Err: err}); nerr != nil {
		a.log.Warn("alert delivery failed", zap.String("alert", event), zap.Error(nerr))
	}
}
