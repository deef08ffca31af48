// Package data provides the dataset store backing the API and CLI.
package data

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quantbench/strategy-tester/pkg/types"
	"github.com/quantbench/strategy-tester/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store provides access to historical market data loaded from CSV
// exports, cached in memory by symbol.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string
	cache   map[string]*types.Series
}

// NewStore creates a store over a data directory, loading every CSV it
// finds. The directory is created if absent.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	store := &Store{
		logger:  logger,
		dataDir: dataDir,
		cache:   make(map[string]*types.Series),
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := store.loadAll(); err != nil {
		return nil, err
	}

	return store, nil
}

// loadAll loads every *.csv file in the data directory.
func (s *Store) loadAll() error {
	paths, err := filepath.Glob(filepath.Join(s.dataDir, "*.csv"))
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, path := range paths {
		symbol := utils.NormalizeSymbol(strings.TrimSuffix(filepath.Base(path), ".csv"))
		series, err := LoadCSV(path)
		if err != nil {
			s.logger.Warn("skipping dataset",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		series.Symbol = symbol

		if issues := Validate(series); len(issues) > 0 {
			s.logger.Warn("dataset validation issues",
				zap.String("symbol", symbol),
				zap.Strings("issues", issues),
			)
		}

		s.cache[symbol] = series
		s.logger.Info("loaded dataset",
			zap.String("symbol", symbol),
			zap.Int("bars", series.Len()),
		)
	}

	return nil
}

// Get returns the series for a symbol.
func (s *Store) Get(symbol string) (*types.Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.cache[utils.NormalizeSymbol(symbol)]
	return series, ok
}

// Put caches a series under its symbol.
func (s *Store) Put(series *types.Series) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[utils.NormalizeSymbol(series.Symbol)] = series
}

// Symbols returns all cached symbols, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.cache))
	for symbol := range s.cache {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// All returns the cached datasets keyed by symbol.
func (s *Store) All() map[string]*types.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*types.Series, len(s.cache))
	for symbol, series := range s.cache {
		out[symbol] = series
	}
	return out
}

// GenerateSample produces a deterministic synthetic daily series with a
// cyclical trend, for demos and tests when no CSV data is available.
func GenerateSample(symbol string, n int, seed int64) *types.Series {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]types.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		// Up for 20 bars, down for 15, with a little noise.
		if i%35 < 20 {
			price *= 1.01 + rng.Float64()*0.005
		} else {
			price *= 0.99 - rng.Float64()*0.005
		}

		open := price * (1 - 0.002*rng.Float64())
		high := price * (1 + 0.01*rng.Float64())
		low := open * (1 - 0.01*rng.Float64())
		bars[i] = types.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(open).Round(4),
			High:      decimal.NewFromFloat(high).Round(4),
			Low:       decimal.NewFromFloat(low).Round(4),
			Close:     decimal.NewFromFloat(price).Round(4),
			Volume:    decimal.NewFromInt(1_000_000 + rng.Int63n(500_000)),
		}
	}

	return &types.Series{Symbol: symbol, Bars: bars}
}
