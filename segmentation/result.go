package segmentation

import (
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-chords/progression"
)

// Result contains the output of one segmentation run
type Result struct {
	ID         string  `json:"id"`               // Unique analysis identifier
	Source     string  `json:"source,omitempty"` // Audio path when produced by an Analyzer
	SampleRate int     `json:"sample_rate"`
	HopLength  int     `json:"hop_length"`
	Frames     int     `json:"frames"`
	Duration   float64 `json:"duration"` // Track length in seconds

	Chords []progression.Chord `json:"chords"`

	// Computational details
	ProcessTime float64 `json:"process_time"` // Processing time in ms
	FramesGated int     `json:"frames_gated"` // Frames with a chord label before smoothing

	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// Diagnostics holds the intermediate 12×T matrices as row slices
type Diagnostics struct {
	Magnitude         [][]float64 `json:"magnitude"`          // Conditioned chroma
	Trend             [][]float64 `json:"trend"`              // Conditioned exponential average
	FilteredMagnitude [][]float64 `json:"filtered_magnitude"` // Magnitude of the selected notes that survived smoothing
	Binary            [][]float64 `json:"binary"`             // Smoothed activation mask
}

func denseRows(m mat.Matrix) [][]float64 {
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := range rows {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
