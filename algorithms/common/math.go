package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Median returns the median of data without modifying it
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	// Empirical quantile at 0.5 picks the middle element for odd lengths
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// reflectIndex maps an out-of-range index into [0, n) by mirroring about the
// edges with the edge sample repeated: (d c b a | a b c d | d c b a).
func reflectIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// MedianFilter applies a centered median filter of the given (odd) window
// size. Samples outside the signal are obtained by reflection so every output
// sample sees a full window.
func MedianFilter(data []float64, windowSize int) []float64 {
	result := make([]float64, len(data))
	if len(data) == 0 {
		return result
	}
	if windowSize <= 1 {
		copy(result, data)
		return result
	}

	half := windowSize / 2
	window := make([]float64, 0, windowSize)
	for i := range data {
		window = window[:0]
		for o := i - half; o < i-half+windowSize; o++ {
			window = append(window, data[reflectIndex(o, len(data))])
		}
		slices.Sort(window)
		mid := len(window) / 2
		if len(window)%2 == 0 {
			result[i] = (window[mid-1] + window[mid]) / 2.0
		} else {
			result[i] = window[mid]
		}
	}

	return result
}

// Sigmoid computes the logistic function
func Sigmoid(y float64) float64 {
	return 1.0 / (1.0 + math.Exp(-y))
}

// SigmoidGate maps x through a logistic soft threshold. The linear map
// y = 8*(x-threshold)/width - 4 puts the transition between threshold and
// threshold+width. Anything at or below y = -4 is hard zeroed. A non-positive
// width gates everything to zero.
func SigmoidGate(x, threshold, width float64) float64 {
	if width <= 0 {
		return 0
	}
	y := 8*(x-threshold)/width - 4
	if !(y > -4) {
		return 0
	}
	return Sigmoid(y)
}

// RoundTo rounds value to the given number of decimal places
func RoundTo(value float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(value*scale) / scale
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
