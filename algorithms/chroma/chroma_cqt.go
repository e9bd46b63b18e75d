package chroma

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-chords/algorithms/spectral"
	"github.com/RyanBlaney/sonido-chords/algorithms/windowing"
)

// ChromaCQT computes a chromagram from a Constant-Q Transform.
//
// CQT bins are spaced logarithmically, f_k = f_min * 2^(k/bins_per_octave),
// which matches the equal tempered scale: every bin lands on a semitone and
// folding bins modulo 12 yields pitch-class energy. Low bins get long
// analysis windows and high bins short ones, so bass notes are resolved
// without smearing the upper register.
//
// The transform uses the spectral-kernel method: each bin's windowed complex
// exponential is transformed once, thresholded to a sparse vector, and
// correlated with the FFT of every signal frame.
type ChromaCQT struct {
	sampleRate    int
	fft           *spectral.FFT
	minFreq       float64 // Minimum frequency (C2 ≈ 65.4 Hz by default)
	maxFreq       float64 // Maximum frequency
	binsPerOctave int     // Number of bins per octave (12 for semitone resolution)
	qFactor       float64 // Quality factor (frequency/bandwidth)
	tuningFreq    float64 // A4 frequency (default 440 Hz)
	sparsity      float64 // kernel entries below sparsity*max are dropped

	fftSize  int
	freqBins []float64
	kernels  []sparseKernel
}

type sparseKernel struct {
	index []int
	value []complex128 // conjugated spectral kernel / fftSize
}

// NewChromaCQT creates a CQT-based chromagram calculator. A qFactor of 0
// selects the constant-Q value implied by binsPerOctave.
func NewChromaCQT(sampleRate int, minFreq, maxFreq float64, binsPerOctave int, qFactor, tuningFreq float64) (*ChromaCQT, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if minFreq <= 0 || maxFreq <= minFreq {
		return nil, fmt.Errorf("invalid frequency range [%g, %g]", minFreq, maxFreq)
	}
	if maxFreq < 2*minFreq {
		return nil, fmt.Errorf("frequency range [%g, %g] spans less than one octave", minFreq, maxFreq)
	}
	if maxFreq >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("max frequency %g exceeds Nyquist for %d Hz", maxFreq, sampleRate)
	}
	if binsPerOctave <= 0 || binsPerOctave%NumPitchClasses != 0 {
		return nil, fmt.Errorf("bins per octave must be a positive multiple of %d, got %d", NumPitchClasses, binsPerOctave)
	}
	if qFactor <= 0 {
		qFactor = 1.0 / (math.Pow(2, 1.0/float64(binsPerOctave)) - 1)
	}

	cqt := &ChromaCQT{
		sampleRate:    sampleRate,
		fft:           spectral.NewFFT(),
		minFreq:       minFreq,
		maxFreq:       maxFreq,
		binsPerOctave: binsPerOctave,
		qFactor:       qFactor,
		tuningFreq:    tuningFreq,
		sparsity:      0.01,
	}
	cqt.computeKernels()

	return cqt, nil
}

// NewChromaCQTDefault creates CQT chromagram with standard musical settings
func NewChromaCQTDefault(sampleRate int) (*ChromaCQT, error) {
	return NewChromaCQT(
		sampleRate,
		65.4,   // C2 frequency
		2093.0, // C7 frequency (5 octaves)
		12,     // 12 bins per octave (semitone resolution)
		0,      // Q from bins per octave
		440.0,  // A4 = 440 Hz
	)
}

// computeKernels pre-computes the sparse spectral kernels
func (cqt *ChromaCQT) computeKernels() {
	numOctaves := math.Log2(cqt.maxFreq / cqt.minFreq)
	totalBins := int(math.Round(numOctaves * float64(cqt.binsPerOctave)))

	cqt.freqBins = make([]float64, totalBins)
	for k := range totalBins {
		cqt.freqBins[k] = cqt.minFreq * math.Pow(2.0, float64(k)/float64(cqt.binsPerOctave))
	}

	// Lowest frequency has the longest kernel
	cqt.fftSize = spectral.NextPowerOfTwo(cqt.kernelLength(cqt.freqBins[0]))
	cqt.kernels = make([]sparseKernel, totalBins)

	for k, freq := range cqt.freqBins {
		length := cqt.kernelLength(freq)
		offset := (cqt.fftSize - length) / 2

		temporal := make([]complex128, cqt.fftSize)
		hann := windowing.NewHann(length, false)
		for n := range length {
			// normalized by length so every bin has unit gain
			window := hann.At(n)
			t := float64(n - length/2)
			phase := 2.0 * math.Pi * freq * t / float64(cqt.sampleRate)
			temporal[offset+n] = complex(window/float64(length), 0) * cmplx.Exp(complex(0, phase))
		}

		spectrum := cqt.fft.ComputeComplex(temporal)

		peak := 0.0
		for _, v := range spectrum {
			peak = math.Max(peak, cmplx.Abs(v))
		}

		var kernel sparseKernel
		for n, v := range spectrum {
			if cmplx.Abs(v) >= cqt.sparsity*peak {
				kernel.index = append(kernel.index, n)
				kernel.value = append(kernel.value, cmplx.Conj(v)/complex(float64(cqt.fftSize), 0))
			}
		}
		cqt.kernels[k] = kernel
	}
}

// kernelLength calculates the length of CQT kernel for given frequency
func (cqt *ChromaCQT) kernelLength(frequency float64) int {
	length := int(math.Ceil(cqt.qFactor * float64(cqt.sampleRate) / frequency))
	if length < 3 {
		length = 3
	}
	return length
}

// ComputeChroma computes an unnormalized CQT chromagram. Frames are centered
// on multiples of hopLength, giving len(signal)/hopLength + 1 frames.
func (cqt *ChromaCQT) ComputeChroma(ctx context.Context, signal []float64, hopLength int) (*Chromagram, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("%w: empty signal", ErrInvalidInput)
	}
	if hopLength <= 0 {
		return nil, fmt.Errorf("%w: hop length must be positive", ErrInvalidInput)
	}

	numFrames := len(signal)/hopLength + 1
	data := mat.NewDense(NumPitchClasses, numFrames, nil)
	pitchClasses := cqt.binPitchClasses()

	for frameIdx := range numFrames {
		if frameIdx%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		frame := spectral.Frame(signal, frameIdx*hopLength-cqt.fftSize/2, cqt.fftSize)
		spectrum := cqt.fft.Compute(frame)

		for k, kernel := range cqt.kernels {
			var bin complex128
			for n, idx := range kernel.index {
				bin += spectrum[idx] * kernel.value[n]
			}
			pc := pitchClasses[k]
			data.Set(pc, frameIdx, data.At(pc, frameIdx)+cmplx.Abs(bin))
		}
	}

	return FromDense(data, cqt.sampleRate, hopLength)
}

// binPitchClasses maps each CQT bin to its chroma row
func (cqt *ChromaCQT) binPitchClasses() []int {
	classes := make([]int, len(cqt.freqBins))
	for k, freq := range cqt.freqBins {
		midiNote := cqt.frequencyToMIDI(freq)
		pc := int(math.Round(midiNote)) % NumPitchClasses
		if pc < 0 {
			pc += NumPitchClasses
		}
		classes[k] = pc
	}
	return classes
}

// frequencyToMIDI converts frequency to MIDI note number
func (cqt *ChromaCQT) frequencyToMIDI(frequency float64) float64 {
	if frequency <= 0 {
		return 0
	}

	// MIDI note number: 69 + 12 * log2(f/440)
	return 69.0 + 12.0*math.Log2(frequency/cqt.tuningFreq)
}

// GetCQTFrequencies returns the CQT frequency bins
func (cqt *ChromaCQT) GetCQTFrequencies() []float64 {
	freqs := make([]float64, len(cqt.freqBins))
	copy(freqs, cqt.freqBins)
	return freqs
}

// GetQFactor returns the quality factor
func (cqt *ChromaCQT) GetQFactor() float64 {
	return cqt.qFactor
}
