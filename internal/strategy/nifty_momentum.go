package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/quantbench/strategy-tester/internal/indicators"
	"github.com/quantbench/strategy-tester/internal/pine"
	"github.com/quantbench/strategy-tester/pkg/types"
)

// NiftyMomentum is an intraday EMA crossover strategy for 5-min index
// charts: enter on an EMA(21)/EMA(50) crossover confirmed by a momentum
// candle (body larger than a multiple of the recent average body), exit
// on a faster EMA(8)/EMA(13) crossover or the session close. Entries are
// suppressed in the last bars of each session so a fill cannot straddle
// the close.
type NiftyMomentum struct {
	entryEMAFast int
	entryEMASlow int
	candleMult   float64
	candleAvgLen int
	exitEMAFast  int
	exitEMASlow  int
}

// NewNiftyMomentum creates the strategy from parameter values.
func NewNiftyMomentum(p Params) *NiftyMomentum {
	return &NiftyMomentum{
		entryEMAFast: int(p.get("entry_ema_fast", 21)),
		entryEMASlow: int(p.get("entry_ema_slow", 50)),
		candleMult:   p.get("candle_mult", 2.5),
		candleAvgLen: int(p.get("candle_avg_len", 15)),
		exitEMAFast:  int(p.get("exit_ema_fast", 8)),
		exitEMASlow:  int(p.get("exit_ema_slow", 13)),
	}
}

func niftyMomentumParamSpace() ParamSpace {
	return ParamSpace{
		"entry_ema_fast": {13, 21},
		"entry_ema_slow": {34, 50},
		"candle_mult":    {2.0, 2.5},
		"candle_avg_len": {15, 20},
		"exit_ema_fast":  {3, 5, 8},
		"exit_ema_slow":  {13, 21},
	}
}

func (s *NiftyMomentum) Name() string { return "Nifty Momentum" }
func (s *NiftyMomentum) Type() Type   { return TypeIntraday }

func (s *NiftyMomentum) Params() Params {
	return Params{
		"entry_ema_fast": float64(s.entryEMAFast),
		"entry_ema_slow": float64(s.entryEMASlow),
		"candle_mult":    s.candleMult,
		"candle_avg_len": float64(s.candleAvgLen),
		"exit_ema_fast":  float64(s.exitEMAFast),
		"exit_ema_slow":  float64(s.exitEMASlow),
	}
}

// ComputeSignals returns crossover-plus-momentum signals for the series.
// Exit signals also fire on the bar before each session's last bar, so
// the next-bar fill lands on the session close rather than the next day.
func (s *NiftyMomentum) ComputeSignals(series *types.Series) []types.SignalVector {
	n := series.Len()
	closes := indicators.Closes(series.Bars)

	entryFast := indicators.EMA(closes, s.entryEMAFast)
	entrySlow := indicators.EMA(closes, s.entryEMASlow)
	exitFast := indicators.EMA(closes, s.exitEMAFast)
	exitSlow := indicators.EMA(closes, s.exitEMASlow)

	body := make([]float64, n)
	for i := range series.Bars {
		open, _ := series.Bars[i].Open.Float64()
		body[i] = math.Abs(closes[i] - open)
	}
	avgBody := indicators.SMA(body, s.candleAvgLen)

	// sessionLast marks the final bar of each trading day; the last bar
	// of the series always counts.
	sessionLast := make([]bool, n)
	for i := 0; i < n; i++ {
		sessionLast[i] = i == n-1 || !sameDay(series.Bars[i].Timestamp, series.Bars[i+1].Timestamp)
	}
	forceExit := func(i int) bool {
		return i == n-1 || sessionLast[i+1]
	}
	noEntryZone := func(i int) bool {
		for j := i; j < i+4 && j < n; j++ {
			if sessionLast[j] {
				return true
			}
		}
		return false
	}

	signals := make([]types.SignalVector, n)
	for i := 0; i < n; i++ {
		// Crossings compare this bar's EMA ordering against the previous
		// bar's; NaN warm-up values compare false on both sides.
		var crossUp, crossDown bool
		if i >= 1 {
			crossUp = entryFast[i] > entrySlow[i] && entryFast[i-1] < entrySlow[i-1]
			crossDown = entryFast[i] < entrySlow[i] && entryFast[i-1] > entrySlow[i-1]
		}

		open, _ := series.Bars[i].Open.Float64()
		bigBody := body[i] > s.candleMult*avgBody[i]
		bigBull := closes[i] > open && bigBody
		bigBear := closes[i] < open && bigBody

		var exitCrossUp, exitCrossDown bool
		if i >= 1 {
			exitCrossUp = exitFast[i] > exitSlow[i] && exitFast[i-1] < exitSlow[i-1]
			exitCrossDown = exitFast[i] < exitSlow[i] && exitFast[i-1] > exitSlow[i-1]
		}

		signals[i] = types.SignalVector{
			LongEntry:  crossUp && bigBull && !noEntryZone(i),
			ShortEntry: crossDown && bigBear && !noEntryZone(i),
			LongExit:   exitCrossDown || forceExit(i),
			ShortExit:  exitCrossUp || forceExit(i),
		}
	}
	return signals
}

// sameDay reports whether two timestamps fall on the same calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// PineScript emits the equivalent Pine Script v5 strategy.
func (s *NiftyMomentum) PineScript() string {
	header := pine.Header(s.Name(), pine.DefaultHeaderOptions())
	return header + "\n" +
		"// Entry Inputs\n" +
		fmt.Sprintf("entryFast = input.int(%d, 'Entry EMA Fast')\n", s.entryEMAFast) +
		fmt.Sprintf("entrySlow = input.int(%d, 'Entry EMA Slow')\n", s.entryEMASlow) +
		fmt.Sprintf("candleMult = input.float(%.1f, 'Candle Body Multiplier')\n", s.candleMult) +
		fmt.Sprintf("candleAvgLen = input.int(%d, 'Candle Avg Length')\n", s.candleAvgLen) +
		"\n" +
		"// Exit Inputs\n" +
		fmt.Sprintf("exitFast = input.int(%d, 'Exit EMA Fast')\n", s.exitEMAFast) +
		fmt.Sprintf("exitSlow = input.int(%d, 'Exit EMA Slow')\n", s.exitEMASlow) +
		"\n" +
		"// Entry Indicators\n" +
		"entryFastEMA = ta.ema(close, entryFast)\n" +
		"entrySlowEMA = ta.ema(close, entrySlow)\n" +
		"\n" +
		"// Momentum Candle Detection\n" +
		"bodySize = math.abs(close - open)\n" +
		"avgBody = ta.sma(bodySize, candleAvgLen)\n" +
		"bigBullCandle = close > open and bodySize > candleMult * avgBody\n" +
		"bigBearCandle = close < open and bodySize > candleMult * avgBody\n" +
		"\n" +
		"// Entry Signals: EMA crossover + momentum candle\n" +
		"entryCrossUp = ta.crossover(entryFastEMA, entrySlowEMA)\n" +
		"entryCrossDown = ta.crossunder(entryFastEMA, entrySlowEMA)\n" +
		"\n" +
		"// Session filter: no entries in last 20 min\n" +
		"isNearClose = (hour == 15 and minute >= 10) or hour > 15\n" +
		"\n" +
		"longEntry = entryCrossUp and bigBullCandle and not isNearClose\n" +
		"shortEntry = entryCrossDown and bigBearCandle and not isNearClose\n" +
		"\n" +
		"// Exit Indicators (faster EMA pair)\n" +
		"exitFastEMA = ta.ema(close, exitFast)\n" +
		"exitSlowEMA = ta.ema(close, exitSlow)\n" +
		"\n" +
		"// Exit Signals: faster EMA crossover or session end\n" +
		"isForceExit = hour == 15 and minute >= 20\n" +
		"longExit = ta.crossunder(exitFastEMA, exitSlowEMA) or isForceExit\n" +
		"shortExit = ta.crossover(exitFastEMA, exitSlowEMA) or isForceExit\n" +
		"\n" +
		"// Strategy Execution\n" +
		"if longEntry\n" +
		"    strategy.entry('Long', strategy.long)\n" +
		"if longExit\n" +
		"    strategy.close('Long')\n" +
		"if shortEntry\n" +
		"    strategy.entry('Short', strategy.short)\n" +
		"if shortExit\n" +
		"    strategy.close('Short')\n" +
		"\n" +
		"// Plots\n" +
		"plot(entryFastEMA, 'Entry Fast EMA', color.blue, linewidth=2)\n" +
		"plot(entrySlowEMA, 'Entry Slow EMA', color.orange, linewidth=2)\n" +
		"plot(exitFastEMA, 'Exit Fast EMA', color.new(color.green, 60))\n" +
		"plot(exitSlowEMA, 'Exit Slow EMA', color.new(color.red, 60))\n"
}
