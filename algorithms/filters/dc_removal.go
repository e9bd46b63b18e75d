package filters

import (
	"math"
)

// DCRemoval is a one-pole DC blocker:
//
//	y[n] = x[n] - x[n-1] + R * y[n-1]
//
// Decoded audio can carry a constant offset that leaks into the lowest
// constant-Q bins; this filter strips it before chroma extraction.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	poleLocation float64 // R parameter (0 < R < 1)
}

// NewDCRemoval creates a DC removal filter with the standard pole 0.995
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff creates a DC removal filter with the given -3dB
// cutoff. The pole is R = 1 - 2*pi*fc/fs, clamped into (0, 1).
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	if sampleRate <= 0 || cutoffFreq <= 0 {
		return NewDCRemoval()
	}

	pole := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
	if pole >= 1.0 {
		pole = 0.999
	} else if pole <= 0.0 {
		pole = 0.001
	}
	return &DCRemoval{poleLocation: pole}
}

// ProcessBuffer filters input and returns a new buffer. The filter keeps no
// state between calls, so one DCRemoval can be shared.
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))

	var x1, y1 float64
	for i, x := range input {
		y := x - x1 + dc.poleLocation*y1
		output[i] = y
		x1, y1 = x, y
	}
	return output
}

// GetPoleLocation returns the current pole location parameter
func (dc *DCRemoval) GetPoleLocation() float64 {
	return dc.poleLocation
}

// GetCutoffFrequency returns the approximate -3dB cutoff, (1-R)*fs/(2*pi)
func (dc *DCRemoval) GetCutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.poleLocation) * float64(sampleRate) / (2.0 * math.Pi)
}
