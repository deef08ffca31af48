// Package strategy provides trading strategy implementations.
package strategy

import (
	"sort"
	"sync"

	"github.com/quantbench/strategy-tester/pkg/types"
	"go.uber.org/zap"
)

// Type distinguishes swing strategies from intraday ones.
type Type string

const (
	TypeSwing    Type = "swing"
	TypeIntraday Type = "intraday"
)

// Params holds a strategy's parameter values by name. Integer-valued
// parameters are carried as float64 and truncated by the strategy.
type Params map[string]float64

// ParamSpace maps parameter names to candidate values for the sweep.
type ParamSpace map[string][]float64

// Strategy is the interface all strategies must implement. A strategy
// never mutates the series it is given; ComputeSignals returns a fresh
// signal slice aligned with the input bars.
type Strategy interface {
	Name() string
	Type() Type
	Params() Params
	ComputeSignals(series *types.Series) []types.SignalVector
	PineScript() string
}

// Definition describes a registered strategy: its sweep space and a
// factory building an instance from parameter values. Missing parameters
// take the strategy's defaults.
type Definition struct {
	Name       string
	ParamSpace ParamSpace
	New        func(params Params) Strategy
}

// Registry manages available strategies.
type Registry struct {
	logger      *zap.Logger
	mu          sync.RWMutex
	definitions map[string]Definition
}

// NewRegistry creates a registry with the built-in strategies.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger:      logger,
		definitions: make(map[string]Definition),
	}

	r.Register("macd_crossover", Definition{
		Name:       "MACD Crossover",
		ParamSpace: macdParamSpace(),
		New:        func(p Params) Strategy { return NewMACDCrossover(p) },
	})
	r.Register("rsi_reversal", Definition{
		Name:       "RSI Reversal",
		ParamSpace: rsiParamSpace(),
		New:        func(p Params) Strategy { return NewRSIReversal(p) },
	})
	r.Register("bb_squeeze", Definition{
		Name:       "BB Squeeze",
		ParamSpace: bbParamSpace(),
		New:        func(p Params) Strategy { return NewBBSqueeze(p) },
	})
	r.Register("nifty_momentum", Definition{
		Name:       "Nifty Momentum",
		ParamSpace: niftyMomentumParamSpace(),
		New:        func(p Params) Strategy { return NewNiftyMomentum(p) },
	})

	return r
}

// Register registers a strategy definition under a key.
func (r *Registry) Register(key string, def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[key] = def
	r.logger.Debug("registered strategy",
		zap.String("key", key),
		zap.String("name", def.Name),
	)
}

// Get returns the definition for a key.
func (r *Registry) Get(key string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[key]
	return def, ok
}

// Create builds a strategy instance by key with the given parameters.
func (r *Registry) Create(key string, params Params) (Strategy, bool) {
	def, ok := r.Get(key)
	if !ok {
		return nil, false
	}
	return def.New(params), true
}

// List returns all registered strategy keys, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.definitions))
	for key := range r.definitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// get returns the named parameter value, or the fallback for absent keys.
func (p Params) get(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// crossAbove reports whether a crossed above b at index i. NaN values on
// either side of the comparison yield false, so warm-up bars never fire.
func crossAbove(a, b []float64, i int) bool {
	if i < 1 {
		return false
	}
	return a[i] > b[i] && a[i-1] <= b[i-1]
}

// crossBelow reports whether a crossed below b at index i.
func crossBelow(a, b []float64, i int) bool {
	if i < 1 {
		return false
	}
	return a[i] < b[i] && a[i-1] >= b[i-1]
}

// level builds a constant series for threshold crossings.
func level(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}
