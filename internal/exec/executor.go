package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"perp-ftx-arb/internal/metrics"
	"perp-ftx-arb/internal/state"
	"perp-ftx-arb/internal/venue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Purpose string

const (
	PurposeArbitrage Purpose = "arbitrage"
	PurposeBalance   Purpose = "balance"
	PurposeEmergency Purpose = "emergency"
)

type PositionOpener interface {
	OpenPosition(ctx context.Context, req venue.OpenPositionRequest) (venue.TxResult, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order venue.Order) (venue.OrderResult, error)
}

// Executor places legs on both venues. Failed legs are logged, journaled and
// returned; nothing is retried, since a resent market order can fill twice.
type Executor struct {
	perp    PositionOpener
	ftx     OrderPlacer
	journal state.Journal
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(perp PositionOpener, ftx OrderPlacer, journal state.Journal, m *metrics.Metrics, log *zap.Logger) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		perp:    perp,
		ftx:     ftx,
		journal: journal,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func (e *Executor) OpenPosition(ctx context.Context, market string, purpose Purpose, req venue.OpenPositionRequest) (venue.TxResult, error) {
	res, err := e.perp.OpenPosition(ctx, req)
	rec := state.Execution{
		ID:         uuid.NewString(),
		Venue:      string(venue.Perp),
		Market:     market,
		Purpose:    string(purpose),
		Side:       string(req.Side),
		Size:       req.Amount.String(),
		AmountType: req.AmountType.String(),
		Outcome:    state.OutcomeFilled,
		Reference:  res.Hash,
	}
	if err != nil {
		rec.Outcome = state.OutcomeFailed
		if errors.Is(err, venue.ErrGasFeeTooHigh) {
			rec.Outcome = state.OutcomeRejected
			e.metrics.GasFeeTooHigh.Inc()
		} else {
			e.metrics.OrdersFailed.Inc()
		}
		rec.Error = err.Error()
		e.record(ctx, rec)
		return venue.TxResult{}, fmt.Errorf("open %s position on %s: %w", req.Side, market, err)
	}
	e.metrics.OrdersPlaced.Inc()
	e.record(ctx, rec)
	e.log.Info("perp position opened",
		zap.String("market", market),
		zap.String("purpose", string(purpose)),
		zap.String("side", string(req.Side)),
		zap.String("amount_type", req.AmountType.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("tx", res.Hash),
		zap.String("gas_fee_eth", res.GasFeeETH.String()),
	)
	return res, nil
}

// PlaceOrder sends a market order with a fresh client id unless one is set.
func (e *Executor) PlaceOrder(ctx context.Context, market string, purpose Purpose, order venue.Order) (venue.OrderResult, error) {
	if order.ClientID == "" {
		order.ClientID = uuid.NewString()
	}
	if order.Type == "" {
		order.Type = venue.OrderMarket
	}
	res, err := e.ftx.PlaceOrder(ctx, order)
	rec := state.Execution{
		ID:        order.ClientID,
		Venue:     string(venue.FTX),
		Market:    market,
		Purpose:   string(purpose),
		Side:      string(order.Side),
		Size:      order.Size.String(),
		Outcome:   state.OutcomeFilled,
		Reference: res.ID,
	}
	if err != nil {
		e.metrics.OrdersFailed.Inc()
		rec.Outcome = state.OutcomeFailed
		rec.Error = err.Error()
		e.record(ctx, rec)
		e.log.Error("ftx place order failed",
			zap.String("event", "FTXPlaceOrderError"),
			zap.String("market", order.Market),
			zap.String("side", string(order.Side)),
			zap.String("size", order.Size.String()),
			zap.String("type", string(order.Type)),
			zap.String("client_id", order.ClientID),
			zap.Error(err),
		)
		return venue.OrderResult{}, fmt.Errorf("place %s order on %s: %w", order.Side, order.Market, err)
	}
	e.metrics.OrdersPlaced.Inc()
	e.record(ctx, rec)
	e.log.Info("ftx order placed",
		zap.String("market", order.Market),
		zap.String("purpose", string(purpose)),
		zap.String("side", string(order.Side)),
		zap.String("size", order.Size.String()),
		zap.String("order_id", res.ID),
	)
	return res, nil
}

type PairResult struct {
	Tx    venue.TxResult
	Order venue.OrderResult
}

// PlacePair places both legs concurrently. Both are always attempted and a
// filled leg is not rolled back when the other fails.
func (e *Executor) PlacePair(ctx context.Context, market string, purpose Purpose, req venue.OpenPositionRequest, order venue.Order) (PairResult, error) {
	var (
		wg       sync.WaitGroup
		out      PairResult
		perpErr  error
		orderErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.Tx, perpErr = e.OpenPosition(ctx, market, purpose, req)
	}()
	go func() {
		defer wg.Done()
		out.Order, orderErr = e.PlaceOrder(ctx, market, purpose, order)
	}()
	wg.Wait()
	return out, errors.Join(perpErr, orderErr)
}

func (e *Executor) record(ctx context.Context, rec state.Execution) {
	if e.journal == nil {
		return
	}
	rec.CreatedAtMS = e.now().UnixMilli()
	if err := e.journal.AppendExecution(ctx, rec); err != nil {
		e.log.Warn("failed to journal execution", zap.String("market", rec.Market), zap.Error(err))
	}
}
