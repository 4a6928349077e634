package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLiveness(maxAge time.Duration, sink Sink, log *zap.Logger) (*Liveness, *clock) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := New(maxAge, sink, log)
	l.now = c.Now
	return l, c
}

func TestLivenessStaleRoutine(t *testing.T) {
	l, c := newTestLiveness(time.Minute, nil, nil)
	l.Register("ArbitrageRoutine", "BalanceRoutine")
	c.Advance(30 * time.Second)
	l.MarkAlive(context.Background(), "ArbitrageRoutine")
	if !l.Status().Healthy {
		t.Fatalf("expected healthy")
	}
	c.Advance(45 * time.Second)
	st := l.Status()
	if st.Healthy {
		t.Fatalf("expected unhealthy once BalanceRoutine is stale")
	}
	if stale := l.Stale(); len(stale) != 1 || stale[0] != "BalanceRoutine" {
		t.Fatalf("unexpected stale routines %v", stale)
	}
	if st.Routines["ArbitrageRoutine"].AgeMS != 45_000 {
		t.Fatalf("unexpected age %d", st.Routines["ArbitrageRoutine"].AgeMS)
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	l, c := newTestLiveness(time.Minute, nil, nil)
	l.Register("EmergencyReduceRoutine")

	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Healthy || len(st.Routines) != 1 {
		t.Fatalf("unexpected status %+v", st)
	}

	c.Advance(2 * time.Minute)
	rec = httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]interface{}
	ttl  time.Duration
	err  error
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	if f.keys == nil {
		f.keys = make(map[string]interface{})
	}
	f.keys[key] = value
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisSink(t *testing.T) {
	rdb := &fakeRedis{}
	l, _ := newTestLiveness(time.Minute, NewRedisSink(rdb, "perp-ftx-arb:alive:", 2*time.Minute), nil)
	l.MarkAlive(context.Background(), "BalanceRoutine")
	if got := rdb.keys["perp-ftx-arb:alive:BalanceRoutine"]; got != "1700000000000" {
		t.Fatalf("unexpected value %v", got)
	}
	if rdb.ttl != 2*time.Minute {
		t.Fatalf("unexpected ttl %s", rdb.ttl)
	}
}

func TestRedisSinkFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rdb := &fakeRedis{err: errors.New("connection refused")}
	l, _ := newTestLiveness(time.Minute, NewRedisSink(rdb, "p:", time.Minute), zap.New(core))
	l.MarkAlive(context.Background(), "ArbitrageRoutine")
	if logs.FilterMessage("liveness sink failed").Len() != 1 {
		t.Fatalf("expected sink failure warning")
	}
	if !l.Status().Healthy {
		t.Fatalf("sink failure must not affect local liveness")
	}
}
