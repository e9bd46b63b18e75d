package chroma

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// NumPitchClasses is the number of chroma rows (C through B)
const NumPitchClasses = 12

// NoteNames labels the chroma rows in order
var NoteNames = [NumPitchClasses]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}

// ErrInvalidInput is returned for malformed chromagrams and frame parameters
var ErrInvalidInput = errors.New("invalid input")

// ValidationError points at the first offending part of a chromagram
type ValidationError struct {
	Reason string
	Row    int // -1 when not cell specific
	Column int // -1 when not cell specific
}

func (e *ValidationError) Error() string {
	if e.Row >= 0 && e.Column >= 0 {
		return fmt.Sprintf("invalid input: %s at pitch class %d, frame %d", e.Reason, e.Row, e.Column)
	}
	return "invalid input: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason, Row: -1, Column: -1}
}

// Chromagram is a 12×T matrix of non-negative pitch-class energy together
// with the frame geometry needed to map frames to seconds. It is immutable
// once constructed; accessors hand out copies.
type Chromagram struct {
	data       *mat.Dense
	sampleRate int
	hopLength  int
}

// NewChromagram validates rows (12 slices of equal length T >= 1) and copies
// them into a Chromagram.
func NewChromagram(rows [][]float64, sampleRate, hopLength int) (*Chromagram, error) {
	if len(rows) != NumPitchClasses {
		return nil, invalid(fmt.Sprintf("expected %d pitch-class rows, got %d", NumPitchClasses, len(rows)))
	}

	frames := len(rows[0])
	if frames == 0 {
		return nil, invalid("chromagram has no frames")
	}

	data := make([]float64, 0, NumPitchClasses*frames)
	for i, row := range rows {
		if len(row) != frames {
			return nil, invalid(fmt.Sprintf("row %d has %d frames, expected %d", i, len(row), frames))
		}
		data = append(data, row...)
	}

	return FromDense(mat.NewDense(NumPitchClasses, frames, data), sampleRate, hopLength)
}

// FromDense validates m and wraps a copy of it
func FromDense(m mat.Matrix, sampleRate, hopLength int) (*Chromagram, error) {
	if m == nil {
		return nil, invalid("nil matrix")
	}
	if err := ValidateGeometry(sampleRate, hopLength); err != nil {
		return nil, err
	}

	rows, cols := m.Dims()
	if rows != NumPitchClasses {
		return nil, invalid(fmt.Sprintf("expected %d pitch-class rows, got %d", NumPitchClasses, rows))
	}
	if cols < 1 {
		return nil, invalid("chromagram has no frames")
	}

	for i := range rows {
		for j := range cols {
			v := m.At(i, j)
			switch {
			case !common.IsFinite(v):
				return nil, &ValidationError{Reason: "non-finite energy", Row: i, Column: j}
			case v < 0:
				return nil, &ValidationError{Reason: "negative energy", Row: i, Column: j}
			}
		}
	}

	return &Chromagram{
		data:       mat.DenseCopyOf(m),
		sampleRate: sampleRate,
		hopLength:  hopLength,
	}, nil
}

// ValidateGeometry checks the frame-to-time parameters
func ValidateGeometry(sampleRate, hopLength int) error {
	if sampleRate <= 0 {
		return invalid(fmt.Sprintf("sample rate must be positive, got %d", sampleRate))
	}
	if hopLength <= 0 {
		return invalid(fmt.Sprintf("hop length must be positive, got %d", hopLength))
	}
	return nil
}

// Frames returns T, the number of time frames
func (c *Chromagram) Frames() int {
	_, cols := c.data.Dims()
	return cols
}

// SampleRate returns the audio sample rate in Hz
func (c *Chromagram) SampleRate() int {
	return c.sampleRate
}

// HopLength returns the number of samples per frame
func (c *Chromagram) HopLength() int {
	return c.hopLength
}

// At returns the energy of pitch class pc in frame
func (c *Chromagram) At(pc, frame int) float64 {
	return c.data.At(pc, frame)
}

// Dense returns a copy of the underlying 12×T matrix
func (c *Chromagram) Dense() *mat.Dense {
	return mat.DenseCopyOf(c.data)
}

// Rows returns a copy of the matrix as 12 row slices
func (c *Chromagram) Rows() [][]float64 {
	rows := make([][]float64, NumPitchClasses)
	for i := range rows {
		rows[i] = mat.Row(nil, i, c.data)
	}
	return rows
}

// Max returns the largest energy in the matrix
func (c *Chromagram) Max() float64 {
	return floats.Max(c.data.RawMatrix().Data)
}

// FrameTime converts a frame index to seconds
func (c *Chromagram) FrameTime(frame int) float64 {
	return FrameTime(frame, c.hopLength, c.sampleRate)
}

// Duration returns the time spanned by all frames in seconds
func (c *Chromagram) Duration() float64 {
	return c.FrameTime(c.Frames())
}

// FrameTime maps a frame index to wall-clock seconds. Every stage uses this
// one mapping.
func FrameTime(frame, hopLength, sampleRate int) float64 {
	return float64(frame) * float64(hopLength) / float64(sampleRate)
}

type chromagramJSON struct {
	SampleRate int         `json:"sample_rate"`
	HopLength  int         `json:"hop_length"`
	Chroma     [][]float64 `json:"chroma"`
}

// MarshalJSON encodes the chromagram as {sample_rate, hop_length, chroma}
// with chroma holding the 12 rows.
func (c *Chromagram) MarshalJSON() ([]byte, error) {
	return json.Marshal(chromagramJSON{
		SampleRate: c.sampleRate,
		HopLength:  c.hopLength,
		Chroma:     c.Rows(),
	})
}

// UnmarshalJSON decodes and validates the MarshalJSON layout
func (c *Chromagram) UnmarshalJSON(data []byte) error {
	var raw chromagramJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chromagram: %w", err)
	}

	decoded, err := NewChromagram(raw.Chroma, raw.SampleRate, raw.HopLength)
	if err != nil {
		return err
	}

	*c = *decoded
	return nil
}
