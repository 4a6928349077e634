package market

import (
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Market is the per-asset record shared by every routine. All fields except
// the imbalance start are fixed after the registry is built.
type Market struct {
	Name                   string
	BaseToken              common.Address
	Pool                   common.Address
	FTXMarketName          string
	FTXSizeIncrement       decimal.Decimal
	OrderAmount            decimal.Decimal
	ShortTriggerSpread     decimal.Decimal
	LongTriggerSpread      decimal.Decimal
	EmergencyReduceEnabled bool

	// unix nanos, zero when no episode is open
	imbalanceStart atomic.Int64
}

// ImbalanceStart returns the start of the open imbalance episode, if any.
func (m *Market) ImbalanceStart() (time.Time, bool) {
	ns := m.imbalanceStart.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

func (m *Market) IsImbalanceOpen() bool {
	return m.imbalanceStart.Load() != 0
}

func (m *Market) setImbalanceStart(t time.Time) {
	m.imbalanceStart.Store(t.UnixNano())
}

func (m *Market) clearImbalanceStart() {
	m.imbalanceStart.Store(0)
}
