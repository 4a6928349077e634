package metrics

type Counter interface {
	Inc()
}

// LabeledCounter increments the series identified by label values, in the
// order the collector declares them.
type LabeledCounter interface {
	Inc(labels ...string)
}

type Metrics struct {
	OrdersPlaced        Counter
	OrdersFailed        Counter
	ArbitrageExecuted   Counter
	BalanceCorrections  Counter
	EmergencyReductions Counter
	GasFeeTooHigh       Counter
	// routine, market
	TickFailures LabeledCounter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopLabeledCounter struct{}

func (noopLabeledCounter) Inc(...string) {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		OrdersPlaced:        n,
		OrdersFailed:        n,
		ArbitrageExecuted:   n,
		BalanceCorrections:  n,
		EmergencyReductions: n,
		GasFeeTooHigh:       n,
		TickFailures:        noopLabeledCounter{},
	}
}
