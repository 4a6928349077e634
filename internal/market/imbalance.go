package market

import "time"

type Decision int

const (
	// DecisionInSync means the legs net to within one increment.
	DecisionInSync Decision = iota
	// DecisionEpisodeStarted opens a new episode without correcting.
	DecisionEpisodeStarted
	DecisionDebouncing
	// DecisionCorrect means the episode outlived the debounce window.
	DecisionCorrect
)

func (d Decision) String() string {
	switch d {
	case DecisionInSync:
		return "in_sync"
	case DecisionEpisodeStarted:
		return "episode_started"
	case DecisionDebouncing:
		return "debouncing"
	case DecisionCorrect:
		return "correct"
	default:
		return "unknown"
	}
}

// ImbalanceTracker is the only writer of a market's imbalance start. The
// balance routine owns the single instance.
type ImbalanceTracker struct {
	debounce time.Duration
}

func NewImbalanceTracker(debounce time.Duration) *ImbalanceTracker {
	return &ImbalanceTracker{debounce: debounce}
}

// Observe advances the market's episode given this tick's imbalance test and
// returns what the caller should do. A DecisionCorrect leaves the episode
// open until Complete is called.
func (t *ImbalanceTracker) Observe(m *Market, imbalanced bool, now time.Time) (Decision, time.Duration) {
	if !imbalanced {
		m.clearImbalanceStart()
		return DecisionInSync, 0
	}
	start, ok := m.ImbalanceStart()
	if !ok {
		m.setImbalanceStart(now)
		return DecisionEpisodeStarted, 0
	}
	elapsed := now.Sub(start)
	if elapsed >= t.debounce {
		return DecisionCorrect, elapsed
	}
	return DecisionDebouncing, elapsed
}

// Complete closes the episode after a correction attempt, whatever its
// outcome.
func (t *ImbalanceTracker) Complete(m *Market) {
	m.clearImbalanceStart()
}
