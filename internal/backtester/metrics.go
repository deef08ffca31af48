// Package backtester provides performance metrics calculation.
package backtester

import (
	"math"

	"github.com/quantbench/strategy-tester/pkg/types"
)

// drawdownEpsilon substitutes for a zero drawdown denominator so the
// profit-to-drawdown ratio stays finite and downstream ranking stays
// well ordered.
const drawdownEpsilon = 1e-10

// MetricsCalculator derives summary statistics from a backtest result.
// Calculate is a pure function of its input.
type MetricsCalculator struct{}

// NewMetricsCalculator creates a new metrics calculator.
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// Calculate computes all performance metrics for a result. A zero-trade
// run still reports net profit and drawdown from the equity curve; the
// trade-derived metrics default to zero rather than failing.
func (mc *MetricsCalculator) Calculate(result *types.BacktestResult) *types.PerformanceMetrics {
	initial, _ := result.Config.InitialCapital.Float64()
	final, _ := result.FinalEquity.Float64()

	metrics := &types.PerformanceMetrics{
		NetProfit:    final - initial,
		NetProfitPct: (final - initial) / initial * 100,
	}

	curve := make([]float64, len(result.EquityCurve))
	for i, point := range result.EquityCurve {
		curve[i], _ = point.Equity.Float64()
	}

	maxDD, maxDDPct := maxDrawdown(curve)
	metrics.MaxDrawdown = maxDD
	metrics.MaxDrawdownPct = maxDDPct

	if len(result.Trades) == 0 {
		return metrics
	}

	var winning, losing int
	var grossProfit, grossLoss float64
	for i := range result.Trades {
		net, _ := result.Trades[i].NetPnL().Float64()
		if net > 0 {
			winning++
			grossProfit += net
		} else {
			losing++
			grossLoss += -net
		}
	}

	metrics.TotalTrades = len(result.Trades)
	metrics.WinningTrades = winning
	metrics.LosingTrades = losing
	metrics.WinRate = float64(winning) / float64(metrics.TotalTrades) * 100

	switch {
	case grossLoss > 0:
		metrics.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		metrics.ProfitFactor = math.Inf(1)
	default:
		metrics.ProfitFactor = 0
	}

	metrics.SharpeRatio = sharpeRatio(curve, result.Config.SharpePeriodsPerYear)

	ddAbs := math.Abs(metrics.MaxDrawdownPct)
	if ddAbs == 0 {
		ddAbs = drawdownEpsilon
	}
	metrics.ProfitToDrawdown = metrics.NetProfitPct / ddAbs

	return metrics
}

// maxDrawdown returns the largest peak-to-trough decline of the curve,
// absolute and as a percentage of the preceding peak.
func maxDrawdown(curve []float64) (abs, pct float64) {
	if len(curve) == 0 {
		return 0, 0
	}

	peak := curve[0]
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		dd := peak - v
		if dd > abs {
			abs = dd
		}
		if peak != 0 {
			ddPct := dd / peak * 100
			if ddPct > pct {
				pct = ddPct
			}
		}
	}
	return abs, pct
}

// sharpeRatio annualizes the mean over stdev of bar-over-bar returns.
// Fewer than two return observations or zero variance yields 0.
func sharpeRatio(curve []float64, periodsPerYear float64) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		returns = append(returns, (curve[i]-curve[i-1])/curve[i-1])
	}

	if len(returns) < 2 {
		return 0
	}

	avg := mean(returns)
	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}

	return avg / sd * math.Sqrt(periodsPerYear)
}

// mean calculates the arithmetic mean.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev calculates the sample standard deviation.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
