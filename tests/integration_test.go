// Package integration_test provides end-to-end integration tests.
package integration_test

import (
	"context"
	"testing"

	"github.com/quantbench/strategy-tester/internal/backtester"
	"github.com/quantbench/strategy-tester/internal/data"
	"github.com/quantbench/strategy-tester/internal/optimization"
	"github.com/quantbench/strategy-tester/internal/strategy"
	"github.com/quantbench/strategy-tester/pkg/types"
	"go.uber.org/zap"
)

// TestFullBacktestWorkflow runs the complete flow: generate data, compute
// strategy signals, replay them through the engine, and derive metrics.
func TestFullBacktestWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := zap.NewNop()

	store, err := data.NewStore(logger, t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create data store: %v", err)
	}
	store.Put(data.GenerateSample("SAMPLE", 500, 42))

	series, ok := store.Get("SAMPLE")
	if !ok {
		t.Fatal("sample dataset missing from store")
	}
	if issues := data.Validate(series); len(issues) > 0 {
		t.Fatalf("sample data failed validation: %v", issues)
	}

	registry := strategy.NewRegistry(logger)
	for _, key := range registry.List() {
		key := key
		t.Run(key, func(t *testing.T) {
			strat, ok := registry.Create(key, nil)
			if !ok {
				t.Fatalf("Failed to create strategy %s", key)
			}
			signals := strat.ComputeSignals(series)
			if len(signals) != series.Len() {
				t.Fatalf("signals length %d, want %d", len(signals), series.Len())
			}

			engine, err := backtester.NewEngine(logger, nil)
			if err != nil {
				t.Fatalf("Failed to create engine: %v", err)
			}
			result, err := engine.Run(context.Background(), series.WithSignals(signals))
			if err != nil {
				t.Fatalf("Backtest failed: %v", err)
			}

			if len(result.EquityCurve) != series.Len() {
				t.Errorf("equity curve length %d, want %d", len(result.EquityCurve), series.Len())
			}
			if !result.FinalEquity.IsPositive() {
				t.Errorf("final equity %s is not positive", result.FinalEquity)
			}
			for i := range result.Trades {
				trade := &result.Trades[i]
				if trade.ExitTime.Before(trade.EntryTime) {
					t.Errorf("trade %d exits before it enters", i)
				}
				if !trade.Quantity.IsPositive() {
					t.Errorf("trade %d has non-positive quantity %s", i, trade.Quantity)
				}
			}

			metrics := backtester.NewMetricsCalculator().Calculate(result)
			if metrics.TotalTrades != len(result.Trades) {
				t.Errorf("metrics count %d trades, result has %d",
					metrics.TotalTrades, len(result.Trades))
			}
		})
	}
}

// TestFullOptimizationWorkflow sweeps a small grid across two datasets
// and checks the ranked output.
func TestFullOptimizationWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := zap.NewNop()

	datasets := map[string]*types.Series{
		"ALPHA": data.GenerateSample("ALPHA", 400, 1),
		"BETA":  data.GenerateSample("BETA", 400, 2),
	}

	registry := strategy.NewRegistry(logger)
	def, ok := registry.Get("rsi_reversal")
	if !ok {
		t.Fatal("rsi_reversal not registered")
	}
	// Shrink the grid so the sweep stays fast.
	def.ParamSpace = strategy.ParamSpace{
		"length":   {7, 14},
		"oversold": {30},
	}

	optimizer, err := optimization.NewOptimizer(logger, &types.OptimizerConfig{
		MaxVariants:     10,
		MinNetProfitPct: -1000,
		MaxDrawdownPct:  1000,
		ParallelWorkers: 2,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create optimizer: %v", err)
	}

	results, err := optimizer.Run(context.Background(), def, datasets)
	if err != nil {
		t.Fatalf("Optimization failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected variants to survive wide-open filters")
	}

	for _, r := range results {
		if len(r.PerAsset) != 2 {
			t.Errorf("variant evaluated on %d datasets, want 2", len(r.PerAsset))
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].AvgProfitToDrawdown < results[i].AvgProfitToDrawdown {
			t.Errorf("leaderboard not sorted at position %d", i)
		}
	}

	table := optimization.Leaderboard(results, 5)
	if table == "" {
		t.Error("empty leaderboard")
	}
}

// TestDeterministicResults runs the same backtest twice and requires
// identical trade sequences.
func TestDeterministicResults(t *testing.T) {
	logger := zap.NewNop()
	registry := strategy.NewRegistry(logger)

	run := func() *types.BacktestResult {
		series := data.GenerateSample("SAMPLE", 300, 42)
		strat, _ := registry.Create("macd_crossover", nil)
		engine, err := backtester.NewEngine(logger, nil)
		if err != nil {
			t.Fatalf("Failed to create engine: %v", err)
		}
		result, err := engine.Run(context.Background(), series.WithSignals(strat.ComputeSignals(series)))
		if err != nil {
			t.Fatalf("Backtest failed: %v", err)
		}
		return result
	}

	first := run()
	second := run()

	if len(first.Trades) != len(second.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(first.Trades), len(second.Trades))
	}
	for i := range first.Trades {
		a, b := &first.Trades[i], &second.Trades[i]
		if !a.EntryPrice.Equal(b.EntryPrice) || !a.ExitPrice.Equal(b.ExitPrice) ||
			!a.PnL.Equal(b.PnL) || !a.Commission.Equal(b.Commission) {
			t.Fatalf("trade %d differs between runs", i)
		}
	}
	if !first.FinalEquity.Equal(second.FinalEquity) {
		t.Errorf("final equity differs: %s vs %s", first.FinalEquity, second.FinalEquity)
	}
}
