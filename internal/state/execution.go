package state

const (
	OutcomeFilled   = "filled"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

type Execution struct {
	ID          string `json:"id"`
	Venue       string `json:"venue"`
	Market      string `json:"market"`
	Purpose     string `json:"purpose"`
	Side        string `json:"side"`
	Size        string `json:"size"`
	AmountType  string `json:"amount_type,omitempty"`
	Outcome     string `json:"outcome"`
	Reference   string `json:"reference,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAtMS int64  `json:"created_at_ms"`
}
