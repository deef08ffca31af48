package strategy

import (
	"fmt"

	"github.com/quantbench/strategy-tester/internal/indicators"
	"github.com/quantbench/strategy-tester/internal/pine"
	"github.com/quantbench/strategy-tester/pkg/types"
)

// RSIReversal trades overbought/oversold reversals: long when RSI
// crosses up through the oversold level, reversed when it crosses down
// through the overbought level.
type RSIReversal struct {
	length     int
	oversold   float64
	overbought float64
}

// NewRSIReversal creates the strategy from parameter values.
func NewRSIReversal(p Params) *RSIReversal {
	return &RSIReversal{
		length:     int(p.get("length", 14)),
		oversold:   p.get("oversold", 30),
		overbought: p.get("overbought", 70),
	}
}

func rsiParamSpace() ParamSpace {
	return ParamSpace{
		"length":     {7, 10, 14, 21},
		"oversold":   {20, 25, 30, 35},
		"overbought": {65, 70, 75, 80},
	}
}

func (s *RSIReversal) Name() string { return "RSI Reversal" }
func (s *RSIReversal) Type() Type   { return TypeSwing }

func (s *RSIReversal) Params() Params {
	return Params{
		"length":     float64(s.length),
		"oversold":   s.oversold,
		"overbought": s.overbought,
	}
}

// ComputeSignals returns threshold-crossing signals for the series.
func (s *RSIReversal) ComputeSignals(series *types.Series) []types.SignalVector {
	closes := indicators.Closes(series.Bars)
	rsi := indicators.RSI(closes, s.length)

	oversold := level(s.oversold, len(closes))
	overbought := level(s.overbought, len(closes))

	signals := make([]types.SignalVector, len(closes))
	for i := range closes {
		up := crossAbove(rsi, oversold, i)
		down := crossBelow(rsi, overbought, i)
		signals[i] = types.SignalVector{
			LongEntry:  up,
			LongExit:   down,
			ShortEntry: down,
			ShortExit:  up,
		}
	}
	return signals
}

// PineScript emits the equivalent Pine Script v5 strategy.
func (s *RSIReversal) PineScript() string {
	header := pine.Header(s.Name(), pine.DefaultHeaderOptions())
	return header + "\n" +
		fmt.Sprintf("length = input.int(%d, 'RSI Length')\n", s.length) +
		fmt.Sprintf("oversold = input.int(%.0f, 'Oversold Level')\n", s.oversold) +
		fmt.Sprintf("overbought = input.int(%.0f, 'Overbought Level')\n", s.overbought) +
		"\n" +
		"rsiVal = ta.rsi(close, length)\n" +
		"\n" +
		"longEntry = ta.crossover(rsiVal, oversold)\n" +
		"longExit = ta.crossunder(rsiVal, overbought)\n" +
		"\n" +
		"if longEntry\n" +
		"    strategy.entry('Long', strategy.long)\n" +
		"if longExit\n" +
		"    strategy.close('Long')\n" +
		"    strategy.entry('Short', strategy.short)\n"
}
