package temporal

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ShortEventSmoother removes activations and gaps shorter than a given
// duration from a binary mask by majority vote over a centered window.
// The mask is padded with 0.5 on both time edges so the borders carry no
// bias toward either state.
type ShortEventSmoother struct {
	halfWindow int
}

// HalfWindow returns round((silenceSeconds/2) * sampleRate/hopLength) - 1,
// floored at 1
func HalfWindow(silenceSeconds float64, sampleRate, hopLength int) int {
	w := int(math.Round((silenceSeconds/2)*float64(sampleRate)/float64(hopLength))) - 1
	if w < 1 {
		w = 1
	}
	return w
}

// NewShortEventSmoother creates a smoother for events shorter than
// silenceSeconds
func NewShortEventSmoother(silenceSeconds float64, sampleRate, hopLength int) *ShortEventSmoother {
	return &ShortEventSmoother{halfWindow: HalfWindow(silenceSeconds, sampleRate, hopLength)}
}

// HalfWindow returns the number of frames on each side of the window
func (s *ShortEventSmoother) HalfWindow() int {
	return s.halfWindow
}

// SmoothRow returns the majority-voted copy of one mask row
func (s *ShortEventSmoother) SmoothRow(row []float64) []float64 {
	w := s.halfWindow
	size := 2*w + 1

	padded := make([]float64, len(row)+2*w)
	for i := range padded {
		padded[i] = 0.5
	}
	copy(padded[w:], row)

	out := make([]float64, len(row))
	for t := range row {
		sum := 0.0
		for _, v := range padded[t : t+size] {
			sum += v
		}
		// ties go to the even integer, so a split vote clears the frame
		out[t] = math.RoundToEven(sum / float64(size))
	}

	return out
}

// Smooth applies SmoothRow to every row of mask and returns a new matrix
func (s *ShortEventSmoother) Smooth(mask mat.Matrix) *mat.Dense {
	rows, cols := mask.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := range rows {
		out.SetRow(i, s.SmoothRow(mat.Row(nil, i, mask)))
	}
	return out
}
