package optimization

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/quantbench/strategy-tester/internal/strategy"
	"github.com/quantbench/strategy-tester/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestGenerateVariantsFullGrid(t *testing.T) {
	space := strategy.ParamSpace{
		"fast":       {8, 10, 12, 14},
		"slow":       {21, 26, 30},
		"signal_len": {7, 9, 12},
	}

	variants := GenerateVariants(space, 500)

	if len(variants) != 36 {
		t.Fatalf("got %d variants, want 36", len(variants))
	}

	seen := make(map[string]bool)
	for _, v := range variants {
		key := formatParams(v)
		if seen[key] {
			t.Errorf("duplicate variant %s", key)
		}
		seen[key] = true
	}
}

func TestGenerateVariantsOrder(t *testing.T) {
	space := strategy.ParamSpace{
		"a": {1, 2},
		"b": {10, 20},
	}

	variants := GenerateVariants(space, 0)

	// Sorted keys with the last key varying fastest.
	want := []strategy.Params{
		{"a": 1, "b": 10},
		{"a": 1, "b": 20},
		{"a": 2, "b": 10},
		{"a": 2, "b": 20},
	}
	if !reflect.DeepEqual(variants, want) {
		t.Errorf("variants = %v, want %v", variants, want)
	}
}

func TestGenerateVariantsCap(t *testing.T) {
	space := strategy.ParamSpace{
		"a": {1, 2, 3, 4, 5},
		"b": {1, 2, 3, 4, 5},
		"c": {1, 2, 3, 4, 5},
	}

	variants := GenerateVariants(space, 50)

	if len(variants) != 50 {
		t.Fatalf("got %d variants, want cap of 50", len(variants))
	}
	first := GenerateVariants(space, 50)
	if !reflect.DeepEqual(variants, first) {
		t.Error("capped sampling is not deterministic")
	}
}

func TestGenerateVariantsEmptySpace(t *testing.T) {
	variants := GenerateVariants(nil, 10)
	if len(variants) != 1 || len(variants[0]) != 0 {
		t.Errorf("empty space should yield one empty variant, got %v", variants)
	}
}

func trendingSeries(n int) *types.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, n)
	for i := 0; i < n; i++ {
		price := 100 + 0.3*float64(i) + 8*math.Sin(float64(i)/10)
		c := decimal.NewFromFloat(price).Round(4)
		bars[i] = types.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c.Sub(decimal.NewFromFloat(0.3)),
			High:      c.Add(decimal.NewFromInt(1)),
			Low:       c.Sub(decimal.NewFromInt(1)),
			Close:     c,
		}
	}
	return &types.Series{Symbol: "TREND", Bars: bars}
}

func TestOptimizerRun(t *testing.T) {
	optimizer, err := NewOptimizer(zap.NewNop(), &types.OptimizerConfig{
		MaxVariants:     20,
		MinNetProfitPct: -1000,
		MaxDrawdownPct:  1000,
		ParallelWorkers: 4,
	}, nil)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	def := strategy.Definition{
		Name: "RSI Reversal",
		ParamSpace: strategy.ParamSpace{
			"length":   {7, 14},
			"oversold": {30, 35},
		},
		New: func(p strategy.Params) strategy.Strategy { return strategy.NewRSIReversal(p) },
	}
	datasets := map[string]*types.Series{
		"TREND": trendingSeries(300),
	}

	results, err := optimizer.Run(context.Background(), def, datasets)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results with wide-open filters")
	}

	for i := 1; i < len(results); i++ {
		if results[i-1].AvgProfitToDrawdown < results[i].AvgProfitToDrawdown {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
	for _, r := range results {
		if _, ok := r.PerAsset["TREND"]; !ok {
			t.Error("per-asset metrics missing for TREND")
		}
	}
}

func TestOptimizerFilter(t *testing.T) {
	// An impossible profit floor must filter everything out.
	optimizer, err := NewOptimizer(zap.NewNop(), &types.OptimizerConfig{
		MaxVariants:     10,
		MinNetProfitPct: 1e9,
		MaxDrawdownPct:  50,
		ParallelWorkers: 2,
	}, nil)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	def := strategy.Definition{
		Name:       "RSI Reversal",
		ParamSpace: strategy.ParamSpace{"length": {7, 14}},
		New:        func(p strategy.Params) strategy.Strategy { return strategy.NewRSIReversal(p) },
	}
	datasets := map[string]*types.Series{"TREND": trendingSeries(200)}

	results, err := optimizer.Run(context.Background(), def, datasets)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0 with impossible filter", len(results))
	}
}

func TestOptimizerCancelled(t *testing.T) {
	optimizer, err := NewOptimizer(zap.NewNop(), nil, nil)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	def := strategy.Definition{
		Name:       "RSI Reversal",
		ParamSpace: strategy.ParamSpace{"length": {7, 14}},
		New:        func(p strategy.Params) strategy.Strategy { return strategy.NewRSIReversal(p) },
	}
	datasets := map[string]*types.Series{"TREND": trendingSeries(200)}

	if _, err := optimizer.Run(ctx, def, datasets); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestLeaderboard(t *testing.T) {
	results := []VariantResult{
		{
			Params:              strategy.Params{"length": 14, "oversold": 30},
			AvgNetProfitPct:     12.5,
			AvgMaxDrawdownPct:   4.2,
			AvgProfitToDrawdown: 2.98,
		},
		{
			Params:              strategy.Params{"length": 7, "oversold": 35},
			AvgNetProfitPct:     8.1,
			AvgMaxDrawdownPct:   6.0,
			AvgProfitToDrawdown: 1.35,
		},
	}

	table := Leaderboard(results, 10)

	for _, want := range []string{"Rank", "Net Profit %", "Max DD %", "length=14", "12.50", "1.35"} {
		if !strings.Contains(table, want) {
			t.Errorf("leaderboard missing %q:\n%s", want, table)
		}
	}
	if lines := strings.Split(table, "\n"); len(lines) != 4 {
		t.Errorf("leaderboard has %d lines, want header + rule + 2 rows", len(lines))
	}
}
