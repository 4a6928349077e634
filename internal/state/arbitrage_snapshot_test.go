package state

import (
	"context"
	"sync"
	"testing"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}

func TestArbitrageSnapshotPerMarket(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	eth := ArbitrageSnapshot{
		Market:       "vETH",
		Outcome:      "executed",
		Action:       "SHORT",
		FTXPrice:     1000,
		ShortSpread:  0.01,
		PerpPosition: -0.3,
		FTXPosition:  0.3,
		UpdatedAtMS:  12345,
	}
	btc := ArbitrageSnapshot{Market: "vBTC", Outcome: "not_triggered", Action: "NONE"}
	if err := SaveArbitrageSnapshot(ctx, store, eth); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := SaveArbitrageSnapshot(ctx, store, btc); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	loaded, ok, err := LoadArbitrageSnapshot(ctx, store, "vETH")
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot to exist")
	}
	if loaded != eth {
		t.Fatalf("expected %+v, got %+v", eth, loaded)
	}
	loaded, ok, err = LoadArbitrageSnapshot(ctx, store, "vBTC")
	if err != nil || !ok || loaded.Outcome != "not_triggered" {
		t.Fatalf("unexpected btc snapshot: %+v ok=%v err=%v", loaded, ok, err)
	}
}

func TestLoadArbitrageSnapshotMissing(t *testing.T) {
	store := &memoryStore{}
	_, ok, err := LoadArbitrageSnapshot(context.Background(), store, "vETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no snapshot")
	}
	if _, ok, err := LoadArbitrageSnapshot(context.Background(), nil, "vETH"); ok || err != nil {
		t.Fatalf("nil store should be empty")
	}
}

func TestLoadArbitrageSnapshotCorrupt(t *testing.T) {
	store := &memoryStore{}
	_ = store.Set(context.Background(), ArbitrageSnapshotKey("vETH"), "{not json")
	if _, _, err := LoadArbitrageSnapshot(context.Background(), store, "vETH"); err == nil {
		t.Fatalf("expected decode error")
	}
}
