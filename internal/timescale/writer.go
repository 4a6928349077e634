package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"perp-ftx-arb/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// SpreadSample is one evaluated arbitrage tick.
type SpreadSample struct {
	Time        time.Time
	Market      string
	FTXPrice    float64
	ShortPrice  float64
	LongPrice   float64
	ShortSpread float64
	LongSpread  float64
	Action      string
}

// PositionSnapshot records both legs around a trade. Phase is "before" or
// "after".
type PositionSnapshot struct {
	Time         time.Time
	Market       string
	Phase        string
	PerpPosition float64
	FTXPosition  float64
}

type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	spreads   chan SpreadSample
	positions chan PositionSnapshot
	started   atomic.Bool
	dropSpr   atomic.Uint64
	dropPos   atomic.Uint64
}

// New returns nil when the writer is disabled. A nil Writer accepts and
// discards everything.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	w := newWriter(db, cfg.Schema, cfg.QueueSize, log)
	if err := w.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func newWriter(db *sql.DB, schema string, queueSize int, log *zap.Logger) *Writer {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "public"
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		spreads:   make(chan SpreadSample, queueSize),
		positions: make(chan PositionSnapshot, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueSpread(s SpreadSample) {
	if w == nil {
		return
	}
	select {
	case w.spreads <- s:
	default:
		if w.dropSpr.Add(1) == 1 {
			w.log.Warn("timescale spread queue full")
		}
	}
}

func (w *Writer) EnqueuePosition(s PositionSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.positions <- s:
	default:
		if w.dropPos.Add(1) == 1 {
			w.log.Warn("timescale position queue full")
		}
	}
}

// Dropped reports how many spread samples and position snapshots were
// discarded on a full queue.
func (w *Writer) Dropped() (spreads, positions uint64) {
	if w == nil {
		return 0, 0
	}
	return w.dropSpr.Load(), w.dropPos.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-w.spreads:
			w.writeSpread(ctx, s)
		case s := <-w.positions:
			w.writePosition(ctx, s)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		market TEXT NOT NULL,
		ftx_price DOUBLE PRECISION NOT NULL,
		short_price DOUBLE PRECISION NOT NULL,
		long_price DOUBLE PRECISION NOT NULL,
		short_spread DOUBLE PRECISION NOT NULL,
		long_spread DOUBLE PRECISION NOT NULL,
		action TEXT NOT NULL
	)`, w.table("spread_samples"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		market TEXT NOT NULL,
		phase TEXT NOT NULL,
		perp_position DOUBLE PRECISION NOT NULL,
		ftx_position DOUBLE PRECISION NOT NULL
	)`, w.table("position_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, name := range []string{"spread_samples", "position_snapshots"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeSpread(ctx context.Context, s SpreadSample) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, market, ftx_price, short_price, long_price, short_spread, long_spread, action
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, w.table("spread_samples"))
	if _, err := w.db.ExecContext(ctx, query,
		s.Time,
		s.Market,
		s.FTXPrice,
		s.ShortPrice,
		s.LongPrice,
		s.ShortSpread,
		s.LongSpread,
		s.Action,
	); err != nil {
		w.log.Warn("timescale spread insert failed", zap.Error(err))
	}
}

func (w *Writer) writePosition(ctx context.Context, s PositionSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, market, phase, perp_position, ftx_position
	) VALUES ($1,$2,$3,$4,$5)`, w.table("position_snapshots"))
	if _, err := w.db.ExecContext(ctx, query, s.Time, s.Market, s.Phase, s.PerpPosition, s.FTXPosition); err != nil {
		w.log.Warn("timescale position insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
