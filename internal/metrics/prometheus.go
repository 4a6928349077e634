package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "perp_ftx_arb"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promLabeledCounter struct {
	vec *prometheus.CounterVec
}

func (p promLabeledCounter) Inc(labels ...string) {
	p.vec.WithLabelValues(labels...).Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry            *prometheus.Registry
	ordersPlaced        prometheus.Counter
	ordersFailed        prometheus.Counter
	arbitrageExecuted   prometheus.Counter
	balanceCorrections  prometheus.Counter
	emergencyReductions prometheus.Counter
	gasFeeTooHigh       prometheus.Counter
	tickFailures        *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of legs placed on either venue.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of leg placement failures.",
	})
	arbitrageExecuted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "arbitrage_executed_total",
		Help:      "Total number of triggered arbitrage pairs.",
	})
	balanceCorrections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "balance_corrections_total",
		Help:      "Total number of imbalance corrections issued.",
	})
	emergencyReductions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "emergency_reductions_total",
		Help:      "Total number of emergency reduce orders issued.",
	})
	gasFeeTooHigh := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "gas_fee_too_high_total",
		Help:      "Total number of ticks aborted by the gas fee ceiling.",
	})
	tickFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "tick_failures_total",
		Help:      "Total number of failed per-market ticks.",
	}, []string{"routine", "market"})

	registry.MustRegister(ordersPlaced, ordersFailed, arbitrageExecuted, balanceCorrections, emergencyReductions, gasFeeTooHigh, tickFailures)

	m := &Metrics{
		OrdersPlaced:        promCounter{ordersPlaced},
		OrdersFailed:        promCounter{ordersFailed},
		ArbitrageExecuted:   promCounter{arbitrageExecuted},
		BalanceCorrections:  promCounter{balanceCorrections},
		EmergencyReductions: promCounter{emergencyReductions},
		GasFeeTooHigh:       promCounter{gasFeeTooHigh},
		TickFailures:        promLabeledCounter{tickFailures},
	}

	return &Prometheus{
		Metrics:             m,
		registry:            registry,
		ordersPlaced:        ordersPlaced,
		ordersFailed:        ordersFailed,
		arbitrageExecuted:   arbitrageExecuted,
		balanceCorrections:  balanceCorrections,
		emergencyReductions: emergencyReductions,
		gasFeeTooHigh:       gasFeeTooHigh,
		tickFailures:        tickFailures,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
