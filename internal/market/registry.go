package market

import (
	"context"
	"fmt"
	"sort"

	"perp-ftx-arb/internal/config"
	"perp-ftx-arb/internal/venue"

	"github.com/shopspring/decimal"
)

type MarketInfoSource interface {
	Market(ctx context.Context, name string) (venue.MarketInfo, error)
}

// Registry holds the enabled markets in name order.
type Registry struct {
	markets []*Market
	byName  map[string]*Market
}

func NewRegistry(markets ...*Market) *Registry {
	r := &Registry{byName: make(map[string]*Market, len(markets))}
	for _, m := range markets {
		r.markets = append(r.markets, m)
		r.byName[m.Name] = m
	}
	sort.Slice(r.markets, func(i, j int) bool { return r.markets[i].Name < r.markets[j].Name })
	return r
}

// Build creates a market for every enabled config entry. Each needs a pool
// whose base symbol matches the entry name and a listed exchange market.
func Build(ctx context.Context, cfg *config.Config, pools []venue.Pool, info MarketInfoSource) (*Registry, error) {
	bySymbol := make(map[string]venue.Pool, len(pools))
	for _, p := range pools {
		bySymbol[p.BaseSymbol] = p
	}
	var markets []*Market
	for _, name := range cfg.EnabledMarkets() {
		mc := cfg.Markets[name]
		pool, ok := bySymbol[name]
		if !ok {
			return nil, fmt.Errorf("market %s: no pool in perp metadata", name)
		}
		mi, err := info.Market(ctx, mc.FTXMarketName)
		if err != nil {
			return nil, fmt.Errorf("market %s: ftx market %s: %w", name, mc.FTXMarketName, err)
		}
		if mi.SizeIncrement.Sign() <= 0 {
			return nil, fmt.Errorf("market %s: ftx market %s has no size increment", name, mc.FTXMarketName)
		}
		markets = append(markets, &Market{
			Name:                   name,
			BaseToken:              pool.BaseAddress,
			Pool:                   pool.Address,
			FTXMarketName:          mc.FTXMarketName,
			FTXSizeIncrement:       mi.SizeIncrement,
			OrderAmount:            decimal.NewFromFloat(mc.OrderAmount),
			ShortTriggerSpread:     decimal.NewFromFloat(mc.ShortTriggerSpread),
			LongTriggerSpread:      decimal.NewFromFloat(mc.LongTriggerSpread),
			EmergencyReduceEnabled: mc.IsEmergencyReduceModeEnabled,
		})
	}
	return NewRegistry(markets...), nil
}

func (r *Registry) All() []*Market {
	out := make([]*Market, len(r.markets))
	copy(out, r.markets)
	return out
}

func (r *Registry) Get(name string) (*Market, bool) {
	m, ok := r.byName[name]
	return m, ok
}

func (r *Registry) Len() int {
	return len(r.markets)
}
