package state

import (
	"context"
	"encoding/json"
	"strings"
)

const arbitrageSnapshotPrefix = "arbitrage:last_snapshot:"

func ArbitrageSnapshotKey(market string) string {
	return arbitrageSnapshotPrefix + market
}

// ArbitrageSnapshot is the outcome of the latest arbitrage evaluation of a
// market.
type ArbitrageSnapshot struct {
	Market       string  `json:"market"`
	Outcome      string  `json:"outcome"`
	Action       string  `json:"action"`
	FTXPrice     float64 `json:"ftx_price"`
	ShortPrice   float64 `json:"short_price"`
	LongPrice    float64 `json:"long_price"`
	ShortSpread  float64 `json:"short_spread"`
	LongSpread   float64 `json:"long_spread"`
	PerpPosition float64 `json:"perp_position"`
	FTXPosition  float64 `json:"ftx_position"`
	UpdatedAtMS  int64   `json:"updated_at_ms"`
}

func LoadArbitrageSnapshot(ctx context.Context, store Store, market string) (ArbitrageSnapshot, bool, error) {
	if store == nil {
		return ArbitrageSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, ArbitrageSnapshotKey(market))
	if err != nil {
		return ArbitrageSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return ArbitrageSnapshot{}, false, nil
	}
	var snapshot ArbitrageSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return ArbitrageSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveArbitrageSnapshot(ctx context.Context, store Store, snapshot ArbitrageSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, ArbitrageSnapshotKey(snapshot.Market), string(payload))
}
