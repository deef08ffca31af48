// Package indicators implements technical indicators that match the
// charting platform's built-ins: SMA-seeded recursive smoothing with the
// platform's alpha values, so values agree within floating-point
// precision. Positions before the warm-up window are NaN.
package indicators

import (
	"math"

	"github.com/quantbench/strategy-tester/pkg/types"
)

// Closes extracts close prices as a float64 slice for indicator math.
func Closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i], _ = bars[i].Close.Float64()
	}
	return out
}

// SMA computes a simple moving average with a rolling window.
func SMA(values []float64, length int) []float64 {
	result := nanSlice(len(values))
	if length <= 0 || len(values) < length {
		return result
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= length {
			sum -= values[i-length]
		}
		if i >= length-1 {
			result[i] = sum / float64(length)
		}
	}
	return result
}

// EMA computes an exponential moving average with alpha = 2/(length+1),
// seeded with the SMA of the first length values.
func EMA(values []float64, length int) []float64 {
	return smoothed(values, length, 2.0/(float64(length)+1))
}

// RMA computes Wilder's moving average with alpha = 1/length, seeded
// with the SMA of the first length values.
func RMA(values []float64, length int) []float64 {
	return smoothed(values, length, 1.0/float64(length))
}

// smoothed applies recursive exponential smoothing from an SMA seed.
func smoothed(values []float64, length int, alpha float64) []float64 {
	result := nanSlice(len(values))
	if length <= 0 || len(values) < length {
		return result
	}

	var sum float64
	for i := 0; i < length; i++ {
		sum += values[i]
	}
	result[length-1] = sum / float64(length)

	for i := length; i < len(values); i++ {
		result[i] = alpha*values[i] + (1-alpha)*result[i-1]
	}
	return result
}

// RSI computes the relative strength index using Wilder's smoothing for
// the average gain and loss, not a plain SMA. A zero average loss maps
// to RSI 100.
func RSI(closes []float64, length int) []float64 {
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := RMA(gains, length)
	avgLoss := RMA(losses, length)

	result := nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			result[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		result[i] = 100 - 100/(1+rs)
	}
	return result
}

// MACD computes the MACD line, signal line, and histogram. The signal
// EMA is seeded from the first valid MACD value, matching the platform.
func MACD(closes []float64, fast, slow, signalLen int) (macd, signal, histogram []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	macd = nanSlice(len(closes))
	for i := range closes {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	signal = nanSlice(len(closes))
	validStart := firstValid(macd)
	if validStart >= 0 {
		signalValid := EMA(macd[validStart:], signalLen)
		copy(signal[validStart:], signalValid)
	}

	histogram = nanSlice(len(closes))
	for i := range closes {
		histogram[i] = macd[i] - signal[i]
	}
	return macd, signal, histogram
}

// Bollinger computes Bollinger Bands using an SMA basis and population
// standard deviation.
func Bollinger(closes []float64, length int, mult float64) (upper, middle, lower []float64) {
	middle = SMA(closes, length)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))

	for i := length - 1; i < len(closes); i++ {
		var sumSquares float64
		for j := i - length + 1; j <= i; j++ {
			diff := closes[j] - middle[i]
			sumSquares += diff * diff
		}
		sd := math.Sqrt(sumSquares / float64(length))
		upper[i] = middle[i] + mult*sd
		lower[i] = middle[i] - mult*sd
	}
	return upper, middle, lower
}

// firstValid returns the index of the first non-NaN value, or -1.
func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
