// Package main provides the strategy-tester CLI: single backtests,
// grid-search sweeps, and the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantbench/strategy-tester/internal/api"
	"github.com/quantbench/strategy-tester/internal/backtester"
	"github.com/quantbench/strategy-tester/internal/data"
	"github.com/quantbench/strategy-tester/internal/optimization"
	"github.com/quantbench/strategy-tester/internal/pine"
	"github.com/quantbench/strategy-tester/internal/strategy"
	"github.com/quantbench/strategy-tester/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	v := loadConfig()
	logger := setupLogger(v.GetString("log_level"))
	defer logger.Sync()

	var err error
	switch os.Args[1] {
	case "backtest":
		err = cmdBacktest(os.Args[2:], v, logger)
	case "optimize":
		err = cmdOptimize(os.Args[2:], v, logger)
	case "serve":
		err = cmdServe(os.Args[2:], v, logger)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: strategy-tester <backtest|optimize|serve> [flags]")
}

// loadConfig reads the optional strategy-tester.yaml config file and
// environment overrides (ST_ prefix).
func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetConfigName("strategy-tester")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.strategy-tester")
	v.SetEnvPrefix("st")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("initial_capital", 100_000.0)
	v.SetDefault("commission_pct", 0.1)
	v.SetDefault("position_size_pct", 100.0)
	v.SetDefault("sharpe_periods_per_year", 252.0)
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "warning: bad config file: %v\n", err)
		}
	}
	return v
}

// engineConfig builds the engine configuration from the merged config.
func engineConfig(v *viper.Viper) *types.EngineConfig {
	return &types.EngineConfig{
		InitialCapital:       decimal.NewFromFloat(v.GetFloat64("initial_capital")),
		CommissionPct:        decimal.NewFromFloat(v.GetFloat64("commission_pct")),
		SlippageTicks:        decimal.Zero,
		PositionSizePct:      decimal.NewFromFloat(v.GetFloat64("position_size_pct")),
		Pyramiding:           0,
		SharpePeriodsPerYear: v.GetFloat64("sharpe_periods_per_year"),
	}
}

func cmdBacktest(args []string, v *viper.Viper, logger *zap.Logger) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	dataPath := fs.String("data", "", "CSV file with OHLCV data (required)")
	strategyKey := fs.String("strategy", "macd_crossover", "Strategy key")
	pineOut := fs.String("pine", "", "Write the equivalent Pine Script to this path")
	fs.Parse(args)

	if *dataPath == "" {
		return fmt.Errorf("-data is required")
	}

	series, err := data.LoadCSV(*dataPath)
	if err != nil {
		return err
	}
	series.Symbol = filepath.Base(*dataPath)

	if issues := data.Validate(series); len(issues) > 0 {
		fmt.Println("Data validation warnings:")
		for _, issue := range issues {
			fmt.Printf("  - %s\n", issue)
		}
	}

	registry := strategy.NewRegistry(logger)
	strat, ok := registry.Create(*strategyKey, nil)
	if !ok {
		return fmt.Errorf("unknown strategy %q, available: %v", *strategyKey, registry.List())
	}

	engine, err := backtester.NewEngine(logger, engineConfig(v))
	if err != nil {
		return err
	}

	signals := strat.ComputeSignals(series)
	result, err := engine.Run(context.Background(), series.WithSignals(signals))
	if err != nil {
		return err
	}

	metrics := backtester.NewMetricsCalculator().Calculate(result)

	fmt.Printf("\nStrategy: %s\n", strat.Name())
	fmt.Printf("Data: %s (%d bars)\n", *dataPath, series.Len())
	fmt.Println(backtester.FormatReport(metrics))

	if *pineOut != "" {
		if err := pine.Save(strat.PineScript(), *pineOut); err != nil {
			return err
		}
		fmt.Printf("\nPine Script saved to: %s\n", *pineOut)
	}

	return nil
}

func cmdOptimize(args []string, v *viper.Viper, logger *zap.Logger) error {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	dataDir := fs.String("data-dir", v.GetString("data_dir"), "Directory of CSV datasets")
	strategyKey := fs.String("strategy", "macd_crossover", "Strategy key")
	topN := fs.Int("top", 10, "Leaderboard size")
	maxVariants := fs.Int("max-variants", 500, "Cap on parameter combinations")
	fs.Parse(args)

	store, err := data.NewStore(logger, *dataDir)
	if err != nil {
		return err
	}
	datasets := store.All()
	if len(datasets) == 0 {
		return fmt.Errorf("no CSV datasets found in %s", *dataDir)
	}

	registry := strategy.NewRegistry(logger)
	def, ok := registry.Get(*strategyKey)
	if !ok {
		return fmt.Errorf("unknown strategy %q, available: %v", *strategyKey, registry.List())
	}

	optConfig := types.DefaultOptimizerConfig()
	optConfig.MaxVariants = *maxVariants

	optimizer, err := optimization.NewOptimizer(logger, optConfig, engineConfig(v))
	if err != nil {
		return err
	}

	results, err := optimizer.Run(context.Background(), def, datasets)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No variants passed the profit/drawdown filters.")
		return nil
	}

	fmt.Println(optimization.Leaderboard(results, *topN))
	return nil
}

func cmdServe(args []string, v *viper.Viper, logger *zap.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	host := fs.String("host", v.GetString("host"), "Server host")
	port := fs.Int("port", v.GetInt("port"), "Server port")
	dataDir := fs.String("data-dir", v.GetString("data_dir"), "Directory of CSV datasets")
	fs.Parse(args)

	store, err := data.NewStore(logger, *dataDir)
	if err != nil {
		return err
	}
	if len(store.Symbols()) == 0 {
		logger.Info("no datasets found, generating sample data")
		store.Put(data.GenerateSample("SAMPLE", 500, 42))
	}

	serverConfig := types.DefaultServerConfig()
	serverConfig.Host = *host
	serverConfig.Port = *port
	serverConfig.DataDir = *dataDir

	registry := strategy.NewRegistry(logger)
	server := api.NewServer(logger, serverConfig, store, registry)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// setupLogger configures the zap logger at the given level.
func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, err := config.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
