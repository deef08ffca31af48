// Package optimization provides the grid-search parameter sweep and
// leaderboard ranking over backtest results.
package optimization

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/quantbench/strategy-tester/internal/backtester"
	"github.com/quantbench/strategy-tester/internal/strategy"
	"github.com/quantbench/strategy-tester/pkg/types"
	"go.uber.org/zap"
)

// VariantResult aggregates one parameter variant's metrics across all
// datasets it was evaluated on.
type VariantResult struct {
	Params              strategy.Params                        `json:"params"`
	PerAsset            map[string]*types.PerformanceMetrics   `json:"perAsset"`
	AvgNetProfitPct     float64                                `json:"avgNetProfitPct"`
	AvgMaxDrawdownPct   float64                                `json:"avgMaxDrawdownPct"`
	AvgProfitToDrawdown float64                                `json:"avgProfitToDrawdown"`
}

// Optimizer sweeps a strategy's parameter space across datasets,
// filters out unprofitable or high-drawdown variants, and ranks the
// rest by profit-to-drawdown. Each evaluation owns a private engine, so
// variants run in parallel safely; datasets are shared read-only.
type Optimizer struct {
	logger       *zap.Logger
	config       *types.OptimizerConfig
	engineConfig *types.EngineConfig
}

// NewOptimizer creates an optimizer. The engine configuration is
// validated once here rather than per variant.
func NewOptimizer(logger *zap.Logger, config *types.OptimizerConfig, engineConfig *types.EngineConfig) (*Optimizer, error) {
	if config == nil {
		config = types.DefaultOptimizerConfig()
	}
	if engineConfig == nil {
		engineConfig = types.DefaultEngineConfig()
	}
	if err := engineConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Optimizer{
		logger:       logger,
		config:       config,
		engineConfig: engineConfig,
	}, nil
}

// Run evaluates every variant of the strategy definition across all
// datasets and returns the filtered, ranked results.
func (o *Optimizer) Run(ctx context.Context, def strategy.Definition, datasets map[string]*types.Series) ([]VariantResult, error) {
	variants := GenerateVariants(def.ParamSpace, o.config.MaxVariants)

	o.logger.Info("starting parameter sweep",
		zap.String("strategy", def.Name),
		zap.Int("variants", len(variants)),
		zap.Int("datasets", len(datasets)),
	)

	symbols := make([]string, 0, len(datasets))
	for symbol := range datasets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	results := make([]VariantResult, len(variants))
	errs := make([]error, len(variants))

	var wg sync.WaitGroup
	workers := o.config.ParallelWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	for i, params := range variants {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(idx int, params strategy.Params) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := o.evaluate(ctx, def, params, symbols, datasets)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx] = *result
		}(i, params)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Filter: discard unprofitable or excessive-drawdown variants.
	kept := make([]VariantResult, 0, len(results))
	for _, r := range results {
		if r.AvgNetProfitPct > o.config.MinNetProfitPct &&
			r.AvgMaxDrawdownPct <= o.config.MaxDrawdownPct {
			kept = append(kept, r)
		}
	}

	// Rank by profit-to-drawdown descending.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].AvgProfitToDrawdown > kept[j].AvgProfitToDrawdown
	})

	o.logger.Info("parameter sweep completed",
		zap.Int("evaluated", len(results)),
		zap.Int("kept", len(kept)),
	)

	return kept, nil
}

// evaluate runs one parameter variant across every dataset.
func (o *Optimizer) evaluate(ctx context.Context, def strategy.Definition, params strategy.Params, symbols []string, datasets map[string]*types.Series) (*VariantResult, error) {
	strat := def.New(params)
	calc := backtester.NewMetricsCalculator()

	result := &VariantResult{
		Params:   params,
		PerAsset: make(map[string]*types.PerformanceMetrics, len(symbols)),
	}

	for _, symbol := range symbols {
		series := datasets[symbol]
		signals := strat.ComputeSignals(series)

		engine, err := backtester.NewEngine(zap.NewNop(), o.engineConfig)
		if err != nil {
			return nil, err
		}
		run, err := engine.Run(ctx, series.WithSignals(signals))
		if err != nil {
			return nil, err
		}

		metrics := calc.Calculate(run)
		result.PerAsset[symbol] = metrics
		result.AvgNetProfitPct += metrics.NetProfitPct
		result.AvgMaxDrawdownPct += metrics.MaxDrawdownPct
		result.AvgProfitToDrawdown += metrics.ProfitToDrawdown
	}

	if n := float64(len(symbols)); n > 0 {
		result.AvgNetProfitPct /= n
		result.AvgMaxDrawdownPct /= n
		result.AvgProfitToDrawdown /= n
	}

	return result, nil
}

// GenerateVariants expands a parameter space into the full grid of
// combinations, capped at maxVariants via uniform index sampling so the
// sweep stays bounded on large grids. Key order is sorted so the output
// is deterministic.
func GenerateVariants(space strategy.ParamSpace, maxVariants int) []strategy.Params {
	if len(space) == 0 {
		return []strategy.Params{{}}
	}

	keys := make([]string, 0, len(space))
	for key := range space {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	total := 1
	for _, key := range keys {
		total *= len(space[key])
	}

	variantAt := func(idx int) strategy.Params {
		params := make(strategy.Params, len(keys))
		for i := len(keys) - 1; i >= 0; i-- {
			values := space[keys[i]]
			params[keys[i]] = values[idx%len(values)]
			idx /= len(values)
		}
		return params
	}

	if maxVariants <= 0 || total <= maxVariants {
		out := make([]strategy.Params, total)
		for i := 0; i < total; i++ {
			out[i] = variantAt(i)
		}
		return out
	}

	step := float64(total) / float64(maxVariants)
	out := make([]strategy.Params, maxVariants)
	for i := 0; i < maxVariants; i++ {
		out[i] = variantAt(int(float64(i) * step))
	}
	return out
}

// Leaderboard formats the top variants as a ranked table.
func Leaderboard(results []VariantResult, topN int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s%-40s%-14s%-12s%-12s\n", "Rank", "Params", "Net Profit %", "Max DD %", "P/DD Ratio")
	b.WriteString(strings.Repeat("-", 84))

	if topN > len(results) {
		topN = len(results)
	}
	for i := 0; i < topN; i++ {
		r := results[i]
		params := formatParams(r.Params)
		if len(params) > 37 {
			params = params[:34] + "..."
		}
		fmt.Fprintf(&b, "\n%-6d%-40s%-14.2f%-12.2f%-12.2f",
			i+1, params, r.AvgNetProfitPct, r.AvgMaxDrawdownPct, r.AvgProfitToDrawdown)
	}
	return b.String()
}

// formatParams renders a parameter set as "k=v, k=v" with sorted keys.
func formatParams(params strategy.Params) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", key, params[key]))
	}
	return strings.Join(parts, ", ")
}
