package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"perp-ftx-arb/internal/config"
	"perp-ftx-arb/internal/ftx"
	"perp-ftx-arb/internal/logging"
	"perp-ftx-arb/internal/market"
	"perp-ftx-arb/internal/perp"
	"perp-ftx-arb/internal/state"
	"perp-ftx-arb/internal/state/sqlite"
	"perp-ftx-arb/internal/strategy"
	"perp-ftx-arb/internal/venue"
	"perp-ftx-arb/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultVerifyTimeout = 30 * time.Second

// verify prints what the bot would see on its next tick without trading.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional .env file")
	journal := flag.Int("journal", 0, "print the N most recent journaled executions and exit")
	snapshots := flag.Bool("snapshots", false, "print the stored arbitrage snapshots and exit")
	timeout := flag.Duration("timeout", defaultVerifyTimeout, "overall timeout")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fatal(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	log := logging.New(config.LoggingConfig{Level: "warn"})
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *journal > 0 || *snapshots {
		if err := printStored(ctx, cfg, *journal, *snapshots); err != nil {
			fatal(err)
		}
		return
	}
	if err := inspect(ctx, cfg, log); err != nil {
		fatal(err)
	}
}

func inspect(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}
	signer, err := wallet.NewSigner(secrets.PrivateKey, cfg.Perp.ChainID)
	if err != nil {
		return err
	}
	eth, err := ethclient.DialContext(ctx, cfg.Perp.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer eth.Close()

	meta, err := perp.LoadMetadata(ctx, &http.Client{Timeout: cfg.Perp.RPCTimeout}, cfg.Perp.MetadataURL)
	if err != nil {
		return err
	}
	// No nonce manager: this client must never send.
	perpClient := perp.New(eth, meta.Contracts, signer, nil, perp.Options{RPCTimeout: cfg.Perp.RPCTimeout}, log)
	ftxClient := ftx.New(cfg.FTX.BaseURL, cfg.FTX.Timeout, ftx.Credentials{
		Key:        secrets.FTXKey,
		Secret:     secrets.FTXSecret,
		Subaccount: secrets.FTXSubaccount,
	}, log)
	registry, err := market.Build(ctx, cfg, meta.Pools, ftxClient)
	if err != nil {
		return err
	}

	trader := signer.Address()
	fmt.Printf("network=%s chain_id=%d trader=%s\n", meta.Network, meta.ChainID, trader.Hex())

	perpRatio, err := perpClient.MarginRatio(ctx, trader)
	if err != nil {
		return err
	}
	account, err := ftxClient.AccountInfo(ctx)
	if err != nil {
		return err
	}
	buyingPower, err := perpClient.BuyingPower(ctx, trader)
	if err != nil {
		return err
	}
	fmt.Printf("perp_margin_ratio=%s ftx_margin_fraction=%s buying_power=%s\n",
		ratioString(perpRatio), ratioString(account.MarginFraction), buyingPower)

	for _, m := range registry.All() {
		if err := inspectMarket(ctx, perpClient, ftxClient, trader, m); err != nil {
			fmt.Printf("market %s: error: %v\n", m.Name, err)
		}
	}
	return nil
}

func inspectMarket(ctx context.Context, perpClient *perp.Client, ftxClient *ftx.Client, trader common.Address, m *market.Market) error {
	perpPos, err := perpClient.TotalPositionSize(ctx, trader, m.BaseToken)
	if err != nil {
		return err
	}
	ftxPos, err := ftxClient.PositionSize(ctx, m.FTXMarketName)
	if err != nil {
		return err
	}
	ftxPrice, err := ftxClient.Price(ctx, m.FTXMarketName)
	if err != nil {
		return err
	}
	shortPrice, err := avgPrice(ctx, perpClient, m, venue.SideShort)
	if err != nil {
		return err
	}
	longPrice, err := avgPrice(ctx, perpClient, m, venue.SideLong)
	if err != nil {
		return err
	}
	spreads := strategy.ComputeSpreads(shortPrice, longPrice, ftxPrice)
	gasFee, err := perpClient.EstimateOpenPositionGasFee(ctx, venue.OpenPositionRequest{
		BaseToken:  m.BaseToken,
		Side:       strategy.ReduceSide(perpPos),
		AmountType: venue.AmountQuote,
		Amount:     m.OrderAmount,
	})
	gas := "n/a"
	if err == nil {
		gas = gasFee.String()
	}

	fmt.Printf("market %s ftx=%s increment=%s pool=%s\n", m.Name, m.FTXMarketName, m.FTXSizeIncrement, m.Pool.Hex())
	fmt.Printf("  perp_position=%s ftx_position=%s imbalanced=%t\n",
		perpPos, ftxPos, strategy.IsImbalanced(perpPos, ftxPos, m.FTXSizeIncrement))
	fmt.Printf("  ftx_price=%s short_price=%s long_price=%s\n", ftxPrice, shortPrice, longPrice)
	fmt.Printf("  short_spread=%s (trigger %s) long_spread=%s (trigger %s) action=%s\n",
		spreads.Short.StringFixed(6), m.ShortTriggerSpread, spreads.Long.StringFixed(6), m.LongTriggerSpread,
		strategy.Trigger(spreads, m.ShortTriggerSpread, m.LongTriggerSpread))
	fmt.Printf("  reduce_gas_fee_eth=%s emergency_reduce=%t\n", gas, m.EmergencyReduceEnabled)
	return nil
}

func avgPrice(ctx context.Context, perpClient *perp.Client, m *market.Market, side venue.Side) (decimal.Decimal, error) {
	q, err := perpClient.Quote(ctx, m.BaseToken, side, venue.AmountQuote, m.OrderAmount, decimal.Zero)
	if err != nil {
		return decimal.Zero, err
	}
	return q.AvgPrice()
}

func printStored(ctx context.Context, cfg *config.Config, journal int, snapshots bool) error {
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	out := map[string]any{}
	if journal > 0 {
		execs, err := store.RecentExecutions(ctx, journal)
		if err != nil {
			return err
		}
		out["executions"] = execs
	}
	if snapshots {
		snaps := make([]state.ArbitrageSnapshot, 0, len(cfg.EnabledMarkets()))
		for _, name := range cfg.EnabledMarkets() {
			snap, ok, err := state.LoadArbitrageSnapshot(ctx, store, name)
			if err != nil {
				return err
			}
			if ok {
				snaps = append(snaps, snap)
			}
		}
		out["snapshots"] = snaps
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func ratioString(r *decimal.Decimal) string {
	if r == nil {
		return "null"
	}
	return r.StringFixed(6)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
	os.Exit(1)
}
