package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.OrdersFailed.Inc()
	prom.Metrics.ArbitrageExecuted.Inc()
	prom.Metrics.BalanceCorrections.Inc()
	prom.Metrics.EmergencyReductions.Inc()
	prom.Metrics.GasFeeTooHigh.Inc()
	prom.Metrics.TickFailures.Inc("ArbitrageRoutine", "vETH")
	prom.Metrics.TickFailures.Inc("ArbitrageRoutine", "vETH")

	assertCounter(t, prom.ordersPlaced, 1)
	assertCounter(t, prom.ordersFailed, 1)
	assertCounter(t, prom.arbitrageExecuted, 1)
	assertCounter(t, prom.balanceCorrections, 1)
	assertCounter(t, prom.emergencyReductions, 1)
	assertCounter(t, prom.gasFeeTooHigh, 1)
	assertCounter(t, prom.tickFailures.WithLabelValues("ArbitrageRoutine", "vETH"), 2)
}

func TestPrometheusHandler(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.OrdersPlaced.Inc()
	srv := httptest.NewServer(prom.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "perp_ftx_arb_orders_placed_total 1") {
		t.Fatalf("expected orders counter in output, got %s", body)
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoop()
	m.OrdersPlaced.Inc()
	m.TickFailures.Inc("BalanceRoutine", "vBTC")
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	if got := testutil.ToFloat64(counter); got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
