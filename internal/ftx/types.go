package ftx

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

type marketResult struct {
	Name           string          `json:"name"`
	SizeIncrement  decimal.Decimal `json:"sizeIncrement"`
	PriceIncrement decimal.Decimal `json:"priceIncrement"`
	Price          decimal.Decimal `json:"price"`
}

type positionResult struct {
	Future  string          `json:"future"`
	NetSize decimal.Decimal `json:"netSize"`
}

type accountResult struct {
	MarginFraction *decimal.Decimal `json:"marginFraction"`
	Collateral     decimal.Decimal  `json:"collateral"`
	FreeCollateral decimal.Decimal  `json:"freeCollateral"`
}

// orderRequest sends numbers unquoted; price is an explicit null for market
// orders.
type orderRequest struct {
	Market   string       `json:"market"`
	Side     string       `json:"side"`
	Price    *json.Number `json:"price"`
	Type     string       `json:"type"`
	Size     json.Number  `json:"size"`
	ClientID string       `json:"clientId,omitempty"`
}

type orderResult struct {
	ID         json.Number     `json:"id"`
	ClientID   string          `json:"clientId"`
	Status     string          `json:"status"`
	FilledSize decimal.Decimal `json:"filledSize"`
}
