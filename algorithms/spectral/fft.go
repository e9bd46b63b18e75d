package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp for the constant-Q front end. It holds no state
// and is safe for concurrent use.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the spectrum of a real signal. go-dsp handles sizes that
// are not a power of two.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeComplex returns the spectrum of a complex signal
func (f *FFT) ComputeComplex(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFT(x)
}

// Frame copies signal[start:start+size] into a zero padded buffer. Indices
// outside the signal read as zero so frames may hang over either edge.
func Frame(signal []float64, start, size int) []float64 {
	frame := make([]float64, size)
	for i := range size {
		idx := start + i
		if idx >= 0 && idx < len(signal) {
			frame[i] = signal[idx]
		}
	}
	return frame
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
