package strategy

import (
	"fmt"

	"github.com/quantbench/strategy-tester/internal/indicators"
	"github.com/quantbench/strategy-tester/internal/pine"
	"github.com/quantbench/strategy-tester/pkg/types"
)

// MACDCrossover trades MACD line / signal line crossovers: long when the
// MACD crosses above its signal, reversed when it crosses below.
type MACDCrossover struct {
	fast      int
	slow      int
	signalLen int
}

// NewMACDCrossover creates the strategy from parameter values.
func NewMACDCrossover(p Params) *MACDCrossover {
	return &MACDCrossover{
		fast:      int(p.get("fast", 12)),
		slow:      int(p.get("slow", 26)),
		signalLen: int(p.get("signal_len", 9)),
	}
}

func macdParamSpace() ParamSpace {
	return ParamSpace{
		"fast":       {8, 10, 12, 14},
		"slow":       {21, 26, 30},
		"signal_len": {7, 9, 12},
	}
}

func (s *MACDCrossover) Name() string { return "MACD Crossover" }
func (s *MACDCrossover) Type() Type   { return TypeSwing }

func (s *MACDCrossover) Params() Params {
	return Params{
		"fast":       float64(s.fast),
		"slow":       float64(s.slow),
		"signal_len": float64(s.signalLen),
	}
}

// ComputeSignals returns crossover signals aligned with the series bars.
func (s *MACDCrossover) ComputeSignals(series *types.Series) []types.SignalVector {
	closes := indicators.Closes(series.Bars)
	macd, signal, _ := indicators.MACD(closes, s.fast, s.slow, s.signalLen)

	signals := make([]types.SignalVector, len(closes))
	for i := range closes {
		above := crossAbove(macd, signal, i)
		below := crossBelow(macd, signal, i)
		signals[i] = types.SignalVector{
			LongEntry:  above,
			LongExit:   below,
			ShortEntry: below,
			ShortExit:  above,
		}
	}
	return signals
}

// PineScript emits the equivalent Pine Script v5 strategy.
func (s *MACDCrossover) PineScript() string {
	header := pine.Header(s.Name(), pine.DefaultHeaderOptions())
	return header + "\n" +
		fmt.Sprintf("fast = input.int(%d, 'Fast Length')\n", s.fast) +
		fmt.Sprintf("slow = input.int(%d, 'Slow Length')\n", s.slow) +
		fmt.Sprintf("signal_len = input.int(%d, 'Signal Length')\n", s.signalLen) +
		"\n" +
		"[macdLine, signalLine, histLine] = ta.macd(close, fast, slow, signal_len)\n" +
		"\n" +
		"longEntry = ta.crossover(macdLine, signalLine)\n" +
		"longExit = ta.crossunder(macdLine, signalLine)\n" +
		"\n" +
		"if longEntry\n" +
		"    strategy.entry('Long', strategy.long)\n" +
		"if longExit\n" +
		"    strategy.close('Long')\n" +
		"    strategy.entry('Short', strategy.short)\n"
}
