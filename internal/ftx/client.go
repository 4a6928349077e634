package ftx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"perp-ftx-arb/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ venue.ExchangeVenue = (*Client)(nil)

// Client talks to the exchange REST API. Private endpoints need credentials.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	log     *zap.Logger
	now     func() time.Time
}

func New(baseURL string, timeout time.Duration, creds Credentials, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
		now: time.Now,
	}
}

func (c *Client) Market(ctx context.Context, name string) (venue.MarketInfo, error) {
	var res marketResult
	if err := c.do(ctx, http.MethodGet, "/markets/"+url.PathEscape(name), nil, false, &res); err != nil {
		return venue.MarketInfo{}, err
	}
	return venue.MarketInfo{
		Name:           res.Name,
		SizeIncrement:  res.SizeIncrement,
		PriceIncrement: res.PriceIncrement,
		Price:          res.Price,
	}, nil
}

func (c *Client) Price(ctx context.Context, market string) (decimal.Decimal, error) {
	info, err := c.Market(ctx, market)
	if err != nil {
		return decimal.Zero, err
	}
	if info.Price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("market %s has no price", market)
	}
	return info.Price, nil
}

// PositionSize returns the signed net size of the future, zero when the
// account holds none.
func (c *Client) PositionSize(ctx context.Context, market string) (decimal.Decimal, error) {
	var positions []positionResult
	if err := c.do(ctx, http.MethodGet, "/positions", nil, true, &positions); err != nil {
		return decimal.Zero, err
	}
	for _, p := range positions {
		if p.Future == market {
			return p.NetSize, nil
		}
	}
	return decimal.Zero, nil
}

func (c *Client) AccountInfo(ctx context.Context) (venue.AccountInfo, error) {
	var res accountResult
	if err := c.do(ctx, http.MethodGet, "/account", nil, true, &res); err != nil {
		return venue.AccountInfo{}, err
	}
	return venue.AccountInfo{
		MarginFraction: res.MarginFraction,
		Collateral:     res.Collateral,
		FreeCollateral: res.FreeCollateral,
	}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, order venue.Order) (venue.OrderResult, error) {
	orderType := order.Type
	if orderType == "" {
		orderType = venue.OrderMarket
	}
	if orderType == venue.OrderLimit && order.Price == nil {
		return venue.OrderResult{}, errors.New("limit order requires a price")
	}
	req := orderRequest{
		Market:   order.Market,
		Side:     string(order.Side),
		Type:     string(orderType),
		Size:     json.Number(order.Size.String()),
		ClientID: order.ClientID,
	}
	if order.Price != nil {
		price := json.Number(order.Price.String())
		req.Price = &price
	}
	var res orderResult
	if err := c.do(ctx, http.MethodPost, "/orders", req, true, &res); err != nil {
		return venue.OrderResult{}, err
	}
	return venue.OrderResult{
		ID:         res.ID.String(),
		ClientID:   res.ClientID,
		Status:     res.Status,
		FilledSize: res.FilledSize,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, private bool, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if private {
		if c.creds.Key == "" || c.creds.Secret == "" {
			return errors.New("ftx credentials are required")
		}
		for k, v := range c.creds.Headers(method, httpReq.URL.RequestURI(), string(payload), c.now()) {
			httpReq.Header.Set(k, v)
		}
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && env.Error != "" {
			return fmt.Errorf("ftx %s %s: http %d: %s", method, path, resp.StatusCode, env.Error)
		}
		return fmt.Errorf("ftx %s %s: http %d: %s", method, path, resp.StatusCode, truncate(raw, 2048))
	}
	if decodeErr != nil {
		return fmt.Errorf("ftx %s %s: decode: %w", method, path, decodeErr)
	}
	if !env.Success {
		return fmt.Errorf("ftx %s %s: %s", method, path, env.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("ftx %s %s: decode result: %w", method, path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
