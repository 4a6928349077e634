package app

import (
	"context"
	"errors"
	"testing"

	"perp-ftx-arb/internal/state"
	"perp-ftx-arb/internal/strategy"
	"perp-ftx-arb/internal/venue"
)

func TestArbitrageShortTriggersBothLegs(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	opened := h.perp.Opened()
	if len(opened) != 1 {
		t.Fatalf("expected one perp leg, got %d", len(opened))
	}
	if opened[0].Side != venue.SideShort || opened[0].AmountType != venue.AmountBase || !opened[0].Amount.Equal(dec("3")) {
		t.Fatalf("unexpected perp leg %+v", opened[0])
	}
	if opened[0].MaxGasFeeETH != nil {
		t.Fatalf("arbitrage legs carry no gas ceiling")
	}
	orders := h.ftx.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected one ftx leg, got %d", len(orders))
	}
	if orders[0].Side != venue.OrderBuy || !orders[0].Size.Equal(dec("3")) || orders[0].Type != venue.OrderMarket {
		t.Fatalf("unexpected ftx leg %+v", orders[0])
	}
	if orders[0].Price != nil || orders[0].ClientID == "" {
		t.Fatalf("expected market order with client id, got %+v", orders[0])
	}
	if h.events(eventShortArbitrage) != 1 || h.events(eventPositionSizeAfter) != 1 {
		t.Fatalf("expected ShortArbitrage and PositionSizeAfter events")
	}
}

func TestArbitrageLongTriggersBothLegs(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("97")
	h.perp.longPrice = dec("98")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	opened := h.perp.Opened()
	orders := h.ftx.Orders()
	if len(opened) != 1 || len(orders) != 1 {
		t.Fatalf("expected both legs, got %d/%d", len(opened), len(orders))
	}
	if opened[0].Side != venue.SideLong || orders[0].Side != venue.OrderSell {
		t.Fatalf("unexpected sides %s/%s", opened[0].Side, orders[0].Side)
	}
	if h.events(eventLongArbitrage) != 1 {
		t.Fatalf("expected LongArbitrage event")
	}
}

func TestArbitrageGasFeeTooHighIsDistinctFromNotTriggered(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")
	h.perp.gasFee = dec("0.02")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	if len(h.perp.Opened()) != 0 || len(h.ftx.Orders()) != 0 {
		t.Fatalf("expected no legs when gas fee is too high")
	}
	if h.events(eventGasFeeTooHigh) != 1 {
		t.Fatalf("expected GasFeeTooHigh event")
	}
	if h.events(eventNotTriggered) != 0 {
		t.Fatalf("gas abort must not log NotTriggered")
	}
}

func TestArbitrageNotTriggered(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("100.5")
	h.perp.longPrice = dec("99.5")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	if len(h.perp.Opened()) != 0 || len(h.ftx.Orders()) != 0 {
		t.Fatalf("expected no legs")
	}
	if h.events(eventNotTriggered) != 1 || h.events(eventGasFeeTooHigh) != 0 {
		t.Fatalf("expected only NotTriggered")
	}
}

func TestArbitrageIncreaseBlockedByMargin(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")
	h.perp.ratio = decPtr("0.05")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	if len(h.perp.Opened()) != 0 || len(h.ftx.Orders()) != 0 {
		t.Fatalf("expected increase to be blocked")
	}
	if h.events(eventShouldNotIncrease) != 1 {
		t.Fatalf("expected ShouldNotIncreasePerpPosition event")
	}
}

func TestArbitrageReduceNotBlockedByMargin(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")
	h.perp.ratio = decPtr("0.05")
	h.ftx.margin = decPtr("0.01")
	h.perp.positions[ethToken] = dec("3")
	h.ftx.positions["ETH-PERP"] = dec("-3")
	h.perp.buyingPower = dec("0")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	opened := h.perp.Opened()
	if len(opened) != 1 || opened[0].Side != venue.SideShort || !opened[0].Amount.Equal(dec("3")) {
		t.Fatalf("expected unclamped reducing short of 3, got %+v", opened)
	}
}

func TestArbitrageNullMarginRatioNeverBlocks(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")
	h.perp.ratio = nil
	h.ftx.margin = nil

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	if len(h.perp.Opened()) != 1 || len(h.ftx.Orders()) != 1 {
		t.Fatalf("null ratios must not block trading")
	}
}

func TestArbitrageClampsIncreaseToBuyingPower(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")
	h.perp.buyingPower = dec("150")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	orders := h.ftx.Orders()
	if len(orders) != 1 || !orders[0].Size.Equal(dec("1.5")) {
		t.Fatalf("expected size clamped to 1.5, got %+v", orders)
	}
}

func TestArbitrageSkipsOpenEpisode(t *testing.T) {
	m := ethMarket()
	h := newHarness(t, m)
	h.perp.shortPrice = dec("102")
	h.app.tracker.Observe(m, true, h.clock)

	if err := h.app.arbitrage(context.Background(), m); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	if h.events(eventSkipDueToImbalance) != 1 {
		t.Fatalf("expected SkipArbitrageDueToImbalance event")
	}
	if h.perp.quotes != 0 || len(h.perp.Opened()) != 0 {
		t.Fatalf("expected no venue work while an episode is open")
	}
}

func TestArbitrageSkipsImbalancedPositions(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.positions[ethToken] = dec("1")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	if h.events(eventSkipDueToImbalance) != 1 || len(h.perp.Opened()) != 0 {
		t.Fatalf("expected skip on imbalanced legs")
	}
}

func TestArbitrageSizeTooSmallIsSurfaced(t *testing.T) {
	m := ethMarket()
	m.OrderAmount = dec("0.05")
	h := newHarness(t, m)
	h.ftx.prices["ETH-PERP"] = dec("50000")
	h.perp.shortPrice = dec("51000")
	h.perp.longPrice = dec("51500")

	err := h.app.arbitrage(context.Background(), m)
	if !errors.Is(err, strategy.ErrOpenSizeTooSmall) {
		t.Fatalf("expected ErrOpenSizeTooSmall, got %v", err)
	}
	if h.events(eventOpenSizeTooSmall) != 1 {
		t.Fatalf("expected OpenSizeSmallerThanFTXSizeIncrementError event")
	}
	if len(h.perp.Opened()) != 0 || len(h.ftx.Orders()) != 0 {
		t.Fatalf("expected no legs")
	}
}

func TestArbitrageLegFailureIsReturned(t *testing.T) {
	h := newHarness(t, ethMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")
	h.ftx.placeErr = errors.New("Not enough balances")

	err := h.app.arbitrage(context.Background(), ethMarket())
	if err == nil {
		t.Fatalf("expected placement error")
	}
	if len(h.perp.Opened()) != 1 {
		t.Fatalf("perp leg is issued regardless of the ftx leg")
	}
}

func TestArbitrageTickIsolatesMarkets(t *testing.T) {
	h := newHarness(t, ethMarket(), btcMarket())
	h.perp.shortPrice = dec("102")
	h.perp.longPrice = dec("103")
	h.ftx.priceErr["BTC-PERP"] = errVenueDown

	h.app.arbitrageTick(context.Background())

	failures := h.logs.FilterField(zapEvent(eventArbitrageError))
	if failures.Len() != 1 {
		t.Fatalf("expected one ArbitrageError, got %d", failures.Len())
	}
	if got := failures.All()[0].ContextMap()["market"]; got != "vBTC" {
		t.Fatalf("expected failure on vBTC, got %v", got)
	}
	orders := h.ftx.Orders()
	if len(orders) != 1 || orders[0].Market != "ETH-PERP" {
		t.Fatalf("expected vETH to trade despite vBTC failure, got %+v", orders)
	}
}

func TestArbitrageSavesSnapshot(t *testing.T) {
	h := newHarness(t, ethMarket())
	store := &memStore{}
	h.app.store = store
	h.perp.shortPrice = dec("100.5")
	h.perp.longPrice = dec("99.5")

	if err := h.app.arbitrage(context.Background(), ethMarket()); err != nil {
		t.Fatalf("arbitrage: %v", err)
	}
	snap, ok, err := state.LoadArbitrageSnapshot(context.Background(), store, "vETH")
	if err != nil || !ok {
		t.Fatalf("expected snapshot, ok=%v err=%v", ok, err)
	}
	if snap.Outcome != outcomeNotTriggered || snap.Action != string(strategy.ActionNone) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.FTXPrice != 100 || snap.UpdatedAtMS != h.clock.UnixMilli() {
		t.Fatalf("unexpected snapshot values %+v", snap)
	}
}

func TestArbitrageIdempotentWhenQuiet(t *testing.T) {
	m := ethMarket()
	h := newHarness(t, m)
	for i := 0; i < 3; i++ {
		if err := h.app.arbitrage(context.Background(), m); err != nil {
			t.Fatalf("arbitrage: %v", err)
		}
	}
	if len(h.perp.Opened()) != 0 || len(h.ftx.Orders()) != 0 || m.IsImbalanceOpen() {
		t.Fatalf("quiet ticks must not mutate state or trade")
	}
}
