// Package types provides configuration types for the strategy tester.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EngineConfig configures a single backtest run.
type EngineConfig struct {
	InitialCapital  decimal.Decimal `json:"initialCapital"`
	CommissionPct   decimal.Decimal `json:"commissionPct"` // percent per trade side
	SlippageTicks   decimal.Decimal `json:"slippageTicks"` // reserved, not applied by the fill model
	PositionSizePct decimal.Decimal `json:"positionSizePct"`
	Pyramiding      int             `json:"pyramiding"` // only 0 (single position) is supported

	// Annualization factor for the Sharpe ratio. Charting platforms
	// apply sqrt(252) regardless of bar frequency; keep that default
	// but let callers override it for intraday series.
	SharpePeriodsPerYear float64 `json:"sharpePeriodsPerYear"`
}

// DefaultEngineConfig returns the platform-default configuration:
// 100k capital, 0.1% commission per side, full equity per entry.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		InitialCapital:       decimal.NewFromInt(100_000),
		CommissionPct:        decimal.NewFromFloat(0.1),
		SlippageTicks:        decimal.Zero,
		PositionSizePct:      decimal.NewFromInt(100),
		Pyramiding:           0,
		SharpePeriodsPerYear: 252,
	}
}

// Validate rejects invalid configurations before a run starts. The
// engine assumes a validated config and never re-checks mid-loop.
func (c *EngineConfig) Validate() error {
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("initial capital must be positive, got %s", c.InitialCapital)
	}
	if c.CommissionPct.IsNegative() {
		return fmt.Errorf("commission pct must not be negative, got %s", c.CommissionPct)
	}
	if c.SlippageTicks.IsNegative() {
		return fmt.Errorf("slippage ticks must not be negative, got %s", c.SlippageTicks)
	}
	if c.PositionSizePct.IsNegative() {
		return fmt.Errorf("position size pct must not be negative, got %s", c.PositionSizePct)
	}
	if c.Pyramiding != 0 {
		return fmt.Errorf("pyramiding depth %d not supported, only 0 (single position)", c.Pyramiding)
	}
	if c.SharpePeriodsPerYear <= 0 {
		return fmt.Errorf("sharpe periods per year must be positive, got %f", c.SharpePeriodsPerYear)
	}
	return nil
}

// OptimizerConfig configures the grid-search sweep.
type OptimizerConfig struct {
	MaxVariants     int     `json:"maxVariants"`
	MinNetProfitPct float64 `json:"minNetProfitPct"`
	MaxDrawdownPct  float64 `json:"maxDrawdownPct"`
	ParallelWorkers int     `json:"parallelWorkers"`
}

// DefaultOptimizerConfig returns sensible sweep defaults.
func DefaultOptimizerConfig() *OptimizerConfig {
	return &OptimizerConfig{
		MaxVariants:     500,
		MinNetProfitPct: 0.0,
		MaxDrawdownPct:  50.0,
		ParallelWorkers: 8,
	}
}

// ServerConfig configures the HTTP/WebSocket API server.
type ServerConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	WebSocketPath string `json:"webSocketPath"`
	DataDir       string `json:"dataDir"`
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:          "localhost",
		Port:          8080,
		WebSocketPath: "/ws",
		DataDir:       "./data",
	}
}
