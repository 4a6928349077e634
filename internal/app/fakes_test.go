package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"perp-ftx-arb/internal/config"
	"perp-ftx-arb/internal/market"
	"perp-ftx-arb/internal/venue"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	testTrader = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	ethToken   = common.HexToAddress("0x8C835DFaA34e2AE61775e80EE29E2c724c6AE2BB")
	btcToken   = common.HexToAddress("0x86f1e0420c26a858fc203A3645dD1A36868F18e5")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fakePerp struct {
	mu          sync.Mutex
	positions   map[common.Address]decimal.Decimal
	values      map[common.Address]decimal.Decimal
	ratio       *decimal.Decimal
	buyingPower decimal.Decimal
	shortPrice  decimal.Decimal
	longPrice   decimal.Decimal
	gasFee      decimal.Decimal
	openErr     error
	opened      []venue.OpenPositionRequest
	quotes      int
}

func newFakePerp() *fakePerp {
	return &fakePerp{
		positions:   make(map[common.Address]decimal.Decimal),
		values:      make(map[common.Address]decimal.Decimal),
		buyingPower: dec("10000"),
		shortPrice:  dec("100"),
		longPrice:   dec("100"),
		gasFee:      dec("0.001"),
	}
}

func (f *fakePerp) TotalPositionSize(_ context.Context, _, base common.Address) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions[base], nil
}

func (f *fakePerp) TotalPositionValue(_ context.Context, _, base common.Address) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[base], nil
}

func (f *fakePerp) MarginRatio(context.Context, common.Address) (*decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ratio, nil
}

func (f *fakePerp) BuyingPower(context.Context, common.Address) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buyingPower, nil
}

// Quote reports one base unit at the configured price so the average price
// is exact.
func (f *fakePerp) Quote(_ context.Context, _ common.Address, side venue.Side, _ venue.AmountType, _, _ decimal.Decimal) (venue.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes++
	price := f.longPrice
	if side == venue.SideShort {
		price = f.shortPrice
	}
	return venue.Quote{DeltaAvailableQuote: price, DeltaAvailableBase: decimal.NewFromInt(1)}, nil
}

func (f *fakePerp) OpenPosition(_ context.Context, req venue.OpenPositionRequest) (venue.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, req)
	if f.openErr != nil {
		return venue.TxResult{}, f.openErr
	}
	return venue.TxResult{Hash: "0xabc", GasUsed: 500000, GasFeeETH: dec("0.0005")}, nil
}

func (f *fakePerp) EstimateOpenPositionGasFee(context.Context, venue.OpenPositionRequest) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gasFee, nil
}

func (f *fakePerp) Opened() []venue.OpenPositionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]venue.OpenPositionRequest(nil), f.opened...)
}

type fakeFTX struct {
	mu        sync.Mutex
	positions map[string]decimal.Decimal
	prices    map[string]decimal.Decimal
	priceErr  map[string]error
	margin    *decimal.Decimal
	placeErr  error
	orders    []venue.Order
}

func newFakeFTX() *fakeFTX {
	return &fakeFTX{
		positions: make(map[string]decimal.Decimal),
		prices:    map[string]decimal.Decimal{"ETH-PERP": dec("100"), "BTC-PERP": dec("100")},
		priceErr:  make(map[string]error),
	}
}

func (f *fakeFTX) Price(_ context.Context, name string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.priceErr[name]; err != nil {
		return decimal.Zero, err
	}
	return f.prices[name], nil
}

func (f *fakeFTX) PositionSize(_ context.Context, name string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions[name], nil
}

func (f *fakeFTX) AccountInfo(context.Context) (venue.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return venue.AccountInfo{MarginFraction: f.margin}, nil
}

func (f *fakeFTX) PlaceOrder(_ context.Context, order venue.Order) (venue.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	if f.placeErr != nil {
		return venue.OrderResult{}, f.placeErr
	}
	return venue.OrderResult{ID: "42", ClientID: order.ClientID, Status: "new"}, nil
}

func (f *fakeFTX) Orders() []venue.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]venue.Order(nil), f.orders...)
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]string)
	}
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Stage: config.StageStaging,
		Strategy: config.StrategyConfig{
			BalanceCheckInterval:         time.Second,
			PriceCheckInterval:           time.Second,
			EmergencyReduceCheckInterval: time.Second,
			EmergencyReduceSleep:         30 * time.Second,
			EmergencyReduceAmount:        500,
			ImbalanceDebounce:            30 * time.Second,
			DustUSDSize:                  100,
		},
		Risk: config.RiskConfig{
			FTXMinMarginRatio:        0.1,
			FTXEmergencyMarginRatio:  0.05,
			PerpMinMarginRatio:       0.1,
			PerpEmergencyMarginRatio: 0.05,
			ArbitrageMaxGasFeeETH:    0.01,
			BalanceMaxGasFeeETH:      0.005,
		},
		Metrics: config.MetricsConfig{Path: "/metrics"},
		Health:  config.HealthConfig{MaxAge: time.Minute},
	}
}

func ethMarket() *market.Market {
	return &market.Market{
		Name:                   "vETH",
		BaseToken:              ethToken,
		FTXMarketName:          "ETH-PERP",
		FTXSizeIncrement:       dec("0.001"),
		OrderAmount:            dec("300"),
		ShortTriggerSpread:     dec("0.01"),
		LongTriggerSpread:      dec("-0.01"),
		EmergencyReduceEnabled: true,
	}
}

func btcMarket() *market.Market {
	return &market.Market{
		Name:                   "vBTC",
		BaseToken:              btcToken,
		FTXMarketName:          "BTC-PERP",
		FTXSizeIncrement:       dec("0.0001"),
		OrderAmount:            dec("300"),
		ShortTriggerSpread:     dec("0.01"),
		LongTriggerSpread:      dec("-0.01"),
		EmergencyReduceEnabled: true,
	}
}

type harness struct {
	app   *App
	perp  *fakePerp
	ftx   *fakeFTX
	logs  *observer.ObservedLogs
	clock time.Time
	slept []time.Duration
}

func newHarness(t *testing.T, markets ...*market.Market) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		perp:  newFakePerp(),
		ftx:   newFakeFTX(),
		logs:  logs,
		clock: time.Unix(1_700_000_000, 0),
	}
	h.app = newApp(testConfig(), zap.New(core), testTrader, h.perp, h.ftx, market.NewRegistry(markets...))
	h.app.now = func() time.Time { return h.clock }
	h.app.sleep = func(ctx context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return ctx.Err()
	}
	return h
}

func (h *harness) events(name string) int {
	return h.logs.FilterField(zap.String("event", name)).Len()
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

var errVenueDown = errors.New("venue down")

func zapEvent(name string) zap.Field {
	return zap.String("event", name)
}
