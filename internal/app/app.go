package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"perp-ftx-arb/internal/alerts"
	"perp-ftx-arb/internal/config"
	"perp-ftx-arb/internal/exec"
	"perp-ftx-arb/internal/ftx"
	"perp-ftx-arb/internal/health"
	"perp-ftx-arb/internal/market"
	"perp-ftx-arb/internal/metrics"
	"perp-ftx-arb/internal/perp"
	"perp-ftx-arb/internal/state"
	"perp-ftx-arb/internal/state/sqlite"
	"perp-ftx-arb/internal/strategy"
	"perp-ftx-arb/internal/timescale"
	"perp-ftx-arb/internal/venue"
	"perp-ftx-arb/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// thresholds are the risk settings converted once at startup.
type thresholds struct {
	ftxMin          decimal.Decimal
	ftxEmergency    decimal.Decimal
	perpMin         decimal.Decimal
	perpEmergency   decimal.Decimal
	arbitrageMaxGas decimal.Decimal
	balanceMaxGas   decimal.Decimal
	emergencyAmount decimal.Decimal
	dust            decimal.Decimal
}

func newThresholds(cfg *config.Config) thresholds {
	return thresholds{
		ftxMin:          decimal.NewFromFloat(cfg.Risk.FTXMinMarginRatio),
		ftxEmergency:    decimal.NewFromFloat(cfg.Risk.FTXEmergencyMarginRatio),
		perpMin:         decimal.NewFromFloat(cfg.Risk.PerpMinMarginRatio),
		perpEmergency:   decimal.NewFromFloat(cfg.Risk.PerpEmergencyMarginRatio),
		arbitrageMaxGas: decimal.NewFromFloat(cfg.Risk.ArbitrageMaxGasFeeETH),
		balanceMaxGas:   decimal.NewFromFloat(cfg.Risk.BalanceMaxGasFeeETH),
		emergencyAmount: decimal.NewFromFloat(cfg.Strategy.EmergencyReduceAmount),
		dust:            decimal.NewFromFloat(cfg.Strategy.DustUSDSize),
	}
}

// App owns the three routines and everything they share.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	trader   common.Address
	perp     venue.PerpVenue
	ftx      venue.ExchangeVenue
	gate     *strategy.Gate
	registry *market.Registry
	tracker  *market.ImbalanceTracker
	executor *exec.Executor
	limits   thresholds
	referral string

	store     state.Store
	metrics   *metrics.Metrics
	promHTTP  http.Handler
	health    *health.Liveness
	alerts    alerts.Notifier
	timescale *timescale.Writer
	closers   []io.Closer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// newApp assembles the decision core over already-built venues. Optional
// sinks default to no-ops and are attached by New.
func newApp(cfg *config.Config, log *zap.Logger, trader common.Address, perpVenue venue.PerpVenue, ftxVenue venue.ExchangeVenue, registry *market.Registry) *App {
	if log == nil {
		log = zap.NewNop()
	}
	m := metrics.NewNoop()
	return &App{
		cfg:      cfg,
		log:      log,
		trader:   trader,
		perp:     perpVenue,
		ftx:      ftxVenue,
		gate:     strategy.NewGate(perpVenue, ftxVenue, trader, log),
		registry: registry,
		tracker:  market.NewImbalanceTracker(cfg.Strategy.ImbalanceDebounce),
		executor: exec.New(perpVenue, ftxVenue, nil, m, log),
		limits:   newThresholds(cfg),
		metrics:  m,
		health:   health.New(cfg.Health.MaxAge, nil, log),
		alerts:   alerts.Nop{},
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// New connects to both venues and builds the market registry. Resources
// opened before a failure are closed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (a *App, err error) {
	log.Info("setting up arbitrageur", zap.String("event", eventSetupArbitrageur), zap.String("stage", cfg.Stage))
	var closers []io.Closer
	defer func() {
		if err != nil {
			closeAll(closers, log)
		}
	}()

	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}
	signer, err := wallet.NewSigner(secrets.PrivateKey, cfg.Perp.ChainID)
	if err != nil {
		return nil, err
	}
	eth, err := ethclient.DialContext(ctx, cfg.Perp.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	closers = append(closers, closerFunc(func() error { eth.Close(); return nil }))
	nonces := wallet.NewNonceManager(eth, signer.Address(), log)
	if err := nonces.Sync(ctx); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Perp.RPCTimeout}
	meta, err := perp.LoadMetadata(ctx, httpClient, cfg.Perp.MetadataURL)
	if err != nil {
		return nil, err
	}
	if meta.ChainID != 0 && meta.ChainID != cfg.Perp.ChainID {
		return nil, fmt.Errorf("perp metadata is for chain %d, configured chain is %d", meta.ChainID, cfg.Perp.ChainID)
	}
	perpClient := perp.New(eth, meta.Contracts, signer, nonces, perp.Options{
		RPCTimeout: cfg.Perp.RPCTimeout,
		TxTimeout:  cfg.Perp.TxTimeout,
	}, log)
	ftxClient := ftx.New(cfg.FTX.BaseURL, cfg.FTX.Timeout, ftx.Credentials{
		Key:        secrets.FTXKey,
		Secret:     secrets.FTXSecret,
		Subaccount: secrets.FTXSubaccount,
	}, log)

	registry, err := market.Build(ctx, cfg, meta.Pools, ftxClient)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store)

	a = newApp(cfg, log, signer.Address(), perpClient, ftxClient, registry)
	a.store = store

	if cfg.Metrics.EnabledValue() {
		prom := metrics.NewPrometheus()
		a.metrics = prom.Metrics
		a.promHTTP = prom.Handler()
	}
	a.executor = exec.New(perpClient, ftxClient, store, a.metrics, log)

	var sink health.Sink
	if cfg.Health.RedisAddr != "" {
		rdb, err := health.DialRedis(ctx, cfg.Health.RedisAddr)
		if err != nil {
			return nil, err
		}
		closers = append(closers, rdb)
		sink = health.NewRedisSink(rdb, cfg.Health.RedisPrefix, 2*cfg.Health.MaxAge)
	}
	a.health = health.New(cfg.Health.MaxAge, sink, log)

	ts, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		return nil, fmt.Errorf("timescale: %w", err)
	}
	if ts != nil {
		closers = append(closers, ts)
	}
	a.timescale = ts
	if cfg.Telegram.Enabled {
		a.alerts = alerts.NewTelegram(cfg.Telegram, cfg.Stage, log)
	}

	if cfg.Perp.ReferralURL != "" {
		code, err := perp.ReferralCode(ctx, httpClient, cfg.Perp.ReferralURL, signer.Address())
		a.applyReferral(code, err)
	}
	if cfg.Perp.DepositOnStart {
		if _, err := perpClient.DepositIdle(ctx); err != nil {
			return nil, fmt.Errorf("deposit idle collateral: %w", err)
		}
	}

	next, _ := nonces.Next()
	log.Info("arbitrageur ready",
		zap.String("event", eventArbitrageurReady),
		zap.String("address", signer.Address().Hex()),
		zap.Uint64("next_nonce", next),
		zap.String("referral_code", a.referral),
		zap.Strings("markets", cfg.EnabledMarkets()),
	)
	a.closers = closers
	return a, nil
}

// applyReferral keeps a best-effort referral code. Lookup failures never
// abort startup; outside production they are not reported at all.
func (a *App) applyReferral(code string, err error) {
	if err == nil {
		a.referral = code
		return
	}
	if a.cfg.Stage != config.StageProduction {
		return
	}
	if errors.Is(err, perp.ErrNoReferralCode) {
		a.log.Info("no referral code", zap.String("event", eventNoReferralCode))
		return
	}
	a.log.Error("referral code lookup failed", zap.String("event", eventGetReferralCodeError), zap.Error(err))
}

// Run starts the sinks and blocks on the three routines until ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	a.health.Register(routineEmergency, routineBalance, routineArbitrage)
	a.timescale.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if addr := a.cfg.Metrics.Address; addr != "" {
		g.Go(func() error { return a.serve(gctx, addr) })
	}
	g.Go(func() error { return a.EmergencyReduceRoutine(gctx) })
	g.Go(func() error { return a.BalanceRoutine(gctx) })
	g.Go(func() error { return a.ArbitrageRoutine(gctx) })
	return g.Wait()
}

func (a *App) Close() {
	closeAll(a.closers, a.log)
	a.closers = nil
}

func closeAll(closers []io.Closer, log *zap.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
