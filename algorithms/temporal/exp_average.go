package temporal

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ExpAverage tracks an attack-sensitive exponential average per row.
//
// The forgetting factor is chosen so the most recent window of frames holds
// 90% of the geometric weight mass. Whenever a raw value exceeds the running
// average the history of that row is discarded and the average restarts at
// the raw value; decays are smoothed.
type ExpAverage struct {
	lambda float64
}

// WindowFrames converts a window length in seconds to whole frames (min 1)
func WindowFrames(windowSeconds float64, sampleRate, hopLength int) int {
	k := int(windowSeconds / (float64(hopLength) / float64(sampleRate)))
	if k < 1 {
		k = 1
	}
	return k
}

// ForgettingFactor returns λ = exp(-ln(0.9/0.1 + 1) / k) for a k-frame window
func ForgettingFactor(windowFrames int) float64 {
	if windowFrames < 1 {
		windowFrames = 1
	}
	return math.Exp(-math.Log(0.9/0.1+1) / float64(windowFrames))
}

// NewExpAverage creates a tracker whose window is windowSeconds long
func NewExpAverage(windowSeconds float64, sampleRate, hopLength int) *ExpAverage {
	return &ExpAverage{
		lambda: ForgettingFactor(WindowFrames(windowSeconds, sampleRate, hopLength)),
	}
}

// Lambda returns the forgetting factor
func (ea *ExpAverage) Lambda() float64 {
	return ea.lambda
}

// ComputeRow returns the running average of a single row
func (ea *ExpAverage) ComputeRow(raw []float64) []float64 {
	trend := make([]float64, len(raw))

	// sum and den carry x[k] + λ·sum[k-1] and 1 + λ·den[k-1]
	sum, den := 0.0, 0.0
	for t, x := range raw {
		if t == 0 || x > trend[t-1] {
			sum, den = x, 1
		} else {
			sum = x + ea.lambda*sum
			den = 1 + ea.lambda*den
		}
		trend[t] = sum / den
	}

	return trend
}

// Compute applies ComputeRow to every row of m and returns a new matrix
func (ea *ExpAverage) Compute(m mat.Matrix) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := range rows {
		out.SetRow(i, ea.ComputeRow(mat.Row(nil, i, m)))
	}
	return out
}
