// Package types provides shared type definitions for the strategy tester.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the side of a position or trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Bar represents a single OHLCV candlestick. OHLC values are immutable
// once loaded; the engine reads but never writes them.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume,omitempty"`
}

// SignalVector holds the four advisory signal flags for one bar. The
// engine alone decides whether a flagged action is legal given the
// current position state.
type SignalVector struct {
	LongEntry  bool `json:"longEntry"`
	LongExit   bool `json:"longExit"`
	ShortEntry bool `json:"shortEntry"`
	ShortExit  bool `json:"shortExit"`
}

// Series is an ordered, time-indexed table of bars plus per-bar signal
// vectors. Signals may be nil, in which case every bar is treated as
// all-false. A Series handed to the engine is read-only; strategies
// return a new signal slice instead of mutating the caller's.
type Series struct {
	Symbol  string         `json:"symbol"`
	Bars    []Bar          `json:"bars"`
	Signals []SignalVector `json:"signals,omitempty"`
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.Bars) }

// SignalAt returns the signal vector for bar i, defaulting to all-false
// when the signal column is absent or shorter than the bar slice.
func (s *Series) SignalAt(i int) SignalVector {
	if i < 0 || i >= len(s.Signals) {
		return SignalVector{}
	}
	return s.Signals[i]
}

// WithSignals returns a shallow copy of the series carrying the given
// signal vectors. The bar slice is shared; bars are never mutated.
func (s *Series) WithSignals(signals []SignalVector) *Series {
	return &Series{Symbol: s.Symbol, Bars: s.Bars, Signals: signals}
}

// Position represents the single open position the engine tracks.
// Quantity is signed: positive = long, negative = short.
type Position struct {
	Direction       Direction       `json:"direction"`
	Quantity        decimal.Decimal `json:"quantity"`
	EntryPrice      decimal.Decimal `json:"entryPrice"`
	EntryTime       time.Time       `json:"entryTime"`
	EntryCommission decimal.Decimal `json:"entryCommission"`
}

// Trade is an immutable record of one completed round-trip. Commission
// is the total for both legs; it matches the aggregate equity impact of
// the trade exactly.
type Trade struct {
	Direction  Direction       `json:"direction"`
	EntryTime  time.Time       `json:"entryTime"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	ExitTime   time.Time       `json:"exitTime"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	Quantity   decimal.Decimal `json:"qty"`
	PnL        decimal.Decimal `json:"pnl"`
	Commission decimal.Decimal `json:"commission"`
}

// NetPnL returns gross PnL minus total round-trip commission.
func (t *Trade) NetPnL() decimal.Decimal {
	return t.PnL.Sub(t.Commission)
}

// EquityCurvePoint is one mark-to-market valuation of the account at a
// bar's close: realized equity plus unrealized PnL of any open position.
type EquityCurvePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
}

// BacktestResult is the output of a single engine run.
type BacktestResult struct {
	Symbol      string             `json:"symbol"`
	Trades      []Trade            `json:"trades"`
	EquityCurve []EquityCurvePoint `json:"equityCurve"`
	FinalEquity decimal.Decimal    `json:"finalEquity"`
	Config      *EngineConfig      `json:"config"`
	StartedAt   time.Time          `json:"startedAt"`
	CompletedAt time.Time          `json:"completedAt"`
	Duration    time.Duration      `json:"duration"`
}

// PerformanceMetrics summarizes a backtest the way a charting-platform
// strategy tester reports it. Fields are float64 rather than decimal
// because profit factor is legitimately +Inf for an all-winning trade
// set and Sharpe needs a square root.
type PerformanceMetrics struct {
	NetProfit        float64 `json:"netProfit"`
	NetProfitPct     float64 `json:"netProfitPct"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	MaxDrawdownPct   float64 `json:"maxDrawdownPct"`
	TotalTrades      int     `json:"totalTrades"`
	WinningTrades    int     `json:"winningTrades"`
	LosingTrades     int     `json:"losingTrades"`
	WinRate          float64 `json:"winRate"`
	ProfitFactor     float64 `json:"profitFactor"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	ProfitToDrawdown float64 `json:"profitToDrawdown"`
}

// BacktestProgress is a periodic snapshot of a running backtest,
// consumed by the WebSocket progress stream.
type BacktestProgress struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`   // "running", "completed", "failed", "cancelled"
	Progress       float64         `json:"progress"` // 0-100
	BarsProcessed  int             `json:"barsProcessed"`
	TotalBars      int             `json:"totalBars"`
	CurrentDate    time.Time       `json:"currentDate"`
	TradesExecuted int             `json:"tradesExecuted"`
	CurrentEquity  decimal.Decimal `json:"currentEquity"`
	Error          string          `json:"error,omitempty"`
}
