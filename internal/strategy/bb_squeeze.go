package strategy

import (
	"fmt"

	"github.com/quantbench/strategy-tester/internal/indicators"
	"github.com/quantbench/strategy-tester/internal/pine"
	"github.com/quantbench/strategy-tester/pkg/types"
)

// BBSqueeze is a Bollinger Band mean-reversion strategy: long when price
// crosses up through the lower band, reversed when it crosses down
// through the upper band.
type BBSqueeze struct {
	length int
	mult   float64
}

// NewBBSqueeze creates the strategy from parameter values.
func NewBBSqueeze(p Params) *BBSqueeze {
	return &BBSqueeze{
		length: int(p.get("length", 20)),
		mult:   p.get("mult", 2.0),
	}
}

func bbParamSpace() ParamSpace {
	return ParamSpace{
		"length": {15, 20, 25, 30},
		"mult":   {1.5, 2.0, 2.5, 3.0},
	}
}

func (s *BBSqueeze) Name() string { return "BB Squeeze" }
func (s *BBSqueeze) Type() Type   { return TypeSwing }

func (s *BBSqueeze) Params() Params {
	return Params{
		"length": float64(s.length),
		"mult":   s.mult,
	}
}

// ComputeSignals returns band-crossing signals for the series.
func (s *BBSqueeze) ComputeSignals(series *types.Series) []types.SignalVector {
	closes := indicators.Closes(series.Bars)
	upper, _, lower := indicators.Bollinger(closes, s.length, s.mult)

	signals := make([]types.SignalVector, len(closes))
	for i := range closes {
		aboveLower := crossAbove(closes, lower, i)
		belowUpper := crossBelow(closes, upper, i)
		signals[i] = types.SignalVector{
			LongEntry:  aboveLower,
			LongExit:   belowUpper,
			ShortEntry: belowUpper,
			ShortExit:  aboveLower,
		}
	}
	return signals
}

// PineScript emits the equivalent Pine Script v5 strategy.
func (s *BBSqueeze) PineScript() string {
	header := pine.Header(s.Name(), pine.DefaultHeaderOptions())
	return header + "\n" +
		fmt.Sprintf("length = input.int(%d, 'BB Length')\n", s.length) +
		fmt.Sprintf("mult = input.float(%.1f, 'BB Mult')\n", s.mult) +
		"\n" +
		"[bbMiddle, bbUpper, bbLower] = ta.bb(close, length, mult)\n" +
		"\n" +
		"longEntry = ta.crossover(close, bbLower)\n" +
		"longExit = ta.crossunder(close, bbUpper)\n" +
		"\n" +
		"if longEntry\n" +
		"    strategy.entry('Long', strategy.long)\n" +
		"if longExit\n" +
		"    strategy.close('Long')\n" +
		"    strategy.entry('Short', strategy.short)\n"
}
