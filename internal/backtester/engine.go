// Package backtester provides the core next-bar-fill backtesting engine.
package backtester

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/quantbench/strategy-tester/pkg/types"
	"go.uber.org/zap"
)

// pendingAction is the single-slot order queue between bars. A signal
// observed at bar i is recorded here and filled at bar i+1's open.
type pendingAction int

const (
	pendingNone pendingAction = iota
	pendingLongEntry
	pendingLongExit
	pendingShortEntry
	pendingShortExit
)

// Engine replays a market series bar by bar, filling signals at the
// following bar's open the way charting-platform strategy testers do.
// Each Run owns its ledger state privately; independent runs may execute
// concurrently on separate Engine instances.
type Engine struct {
	logger *zap.Logger
	config *types.EngineConfig

	running   atomic.Bool
	cancelled atomic.Bool

	progressChan chan *types.BacktestProgress
}

// NewEngine creates an engine for the given configuration. Invalid
// configurations are rejected here, never mid-run.
func NewEngine(logger *zap.Logger, config *types.EngineConfig) (*Engine, error) {
	if config == nil {
		config = types.DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Engine{
		logger:       logger,
		config:       config,
		progressChan: make(chan *types.BacktestProgress, 100),
	}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() *types.EngineConfig { return e.config }

// Cancel cancels a running backtest between bar iterations.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// ProgressChan returns the progress channel for streaming consumers.
func (e *Engine) ProgressChan() <-chan *types.BacktestProgress {
	return e.progressChan
}

// Run executes a backtest over the series. The series is read-only:
// bars are never mutated and missing signal columns default to all-false.
// Timestamp ordering and OHLC consistency are the data layer's job; the
// engine assumes a pre-validated series.
//
// Per-bar order of operations:
//  1. fill any pending action at this bar's open;
//  2. record the equity-curve value at this bar's close;
//  3. evaluate this bar's signals into the pending slot for the next bar.
func (e *Engine) Run(ctx context.Context, series *types.Series) (*types.BacktestResult, error) {
	if e.running.Load() {
		return nil, fmt.Errorf("backtest already running")
	}
	e.running.Store(true)
	e.cancelled.Store(false)
	defer e.running.Store(false)

	startTime := time.Now()
	n := series.Len()

	e.logger.Info("starting backtest",
		zap.String("symbol", series.Symbol),
		zap.Int("bars", n),
		zap.String("initialCapital", e.config.InitialCapital.String()),
	)

	book := newLedger(e.config)
	curve := make([]types.EquityCurvePoint, 0, n)
	pending := pendingNone

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if e.cancelled.Load() {
			return nil, fmt.Errorf("backtest cancelled")
		}

		bar := &series.Bars[i]

		// (1) Fill the pending action from the previous bar at this
		// bar's open. The ledger gates each transition on position
		// state: entries only when flat, exits only for the matching
		// direction. Illegal actions fall through silently.
		switch pending {
		case pendingLongEntry:
			book.open(types.DirectionLong, bar.Open, bar.Timestamp)
		case pendingShortEntry:
			book.open(types.DirectionShort, bar.Open, bar.Timestamp)
		case pendingLongExit:
			book.close(types.DirectionLong, bar.Open, bar.Timestamp)
		case pendingShortExit:
			book.close(types.DirectionShort, bar.Open, bar.Timestamp)
		}
		pending = pendingNone

		// (2) Mark the account to market at this bar's close.
		curve = append(curve, types.EquityCurvePoint{
			Timestamp: bar.Timestamp,
			Equity:    book.markToMarket(bar.Close),
		})

		// (3) Queue this bar's signal for the next bar's open.
		pending = nextPending(book.state(), series.SignalAt(i))

		if (i+1)%10000 == 0 {
			e.sendProgress(series.Symbol, i+1, n, book, bar.Timestamp)
		}
	}

	// Force-close any position left open after the final bar, at the
	// final bar's close. There is no next bar to fill on.
	if n > 0 && !book.flat() {
		last := &series.Bars[n-1]
		book.close(book.state(), last.Close, last.Timestamp)
		curve[n-1].Equity = book.equity
	}

	result := &types.BacktestResult{
		Symbol:      series.Symbol,
		Trades:      book.trades,
		EquityCurve: curve,
		FinalEquity: book.equity,
		Config:      e.config,
		StartedAt:   startTime,
		CompletedAt: time.Now(),
		Duration:    time.Since(startTime),
	}

	e.logger.Info("backtest completed",
		zap.String("symbol", series.Symbol),
		zap.Int("trades", len(result.Trades)),
		zap.String("finalEquity", result.FinalEquity.String()),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// nextPending maps (position state, signal vector) to the action queued
// for the next bar. The precedence is explicit: an exit for the current
// direction always beats a new entry, and entries are only honored when
// flat. Everything else is ignored, including entry signals while a
// position is open.
func nextPending(state types.Direction, sig types.SignalVector) pendingAction {
	switch state {
	case types.DirectionLong:
		if sig.LongExit {
			return pendingLongExit
		}
	case types.DirectionShort:
		if sig.ShortExit {
			return pendingShortExit
		}
	default: // flat
		if sig.LongEntry {
			return pendingLongEntry
		}
		if sig.ShortEntry {
			return pendingShortEntry
		}
	}
	return pendingNone
}

// sendProgress pushes a progress snapshot, dropping it if nobody reads.
func (e *Engine) sendProgress(symbol string, done, total int, book *ledger, current time.Time) {
	update := &types.BacktestProgress{
		ID:             symbol,
		Status:         "running",
		Progress:       float64(done) / float64(total) * 100,
		BarsProcessed:  done,
		TotalBars:      total,
		CurrentDate:    current,
		TradesExecuted: len(book.trades),
		CurrentEquity:  book.equity,
	}

	select {
	case e.progressChan <- update:
	default:
	}
}
