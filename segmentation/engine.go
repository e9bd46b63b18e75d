package segmentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/temporal"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/progression"
)

// Engine runs the chord segmentation pipeline on a chromagram:
// conditioning, note selection, classification, short-event smoothing,
// timeline building and refinement.
//
// An Engine holds only immutable configuration and lookup tables. Every Run
// allocates its own working matrices, so one Engine can analyze several
// tracks concurrently.
type Engine struct {
	params      Params
	conditioner *Conditioner
	selector    *tonal.NoteSelector
	classifier  *tonal.Classifier
	logger      logging.Logger
}

// NewEngine validates params and builds the pipeline stages
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	classifier, err := tonal.NewClassifier(params.classifierParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return &Engine{
		params:      params,
		conditioner: NewConditioner(params),
		selector:    tonal.NewNoteSelector(params.MagnitudeThreshold, params.MaxReference),
		classifier:  classifier,
		logger: logging.WithFields(logging.Fields{
			"component": "segmentation_engine",
		}),
	}, nil
}

// Params returns the engine's parameters
func (e *Engine) Params() Params {
	return e.params
}

// Run segments cg into a chord timeline. The chromagram carries its own
// sample rate and hop length.
func (e *Engine) Run(ctx context.Context, cg *chroma.Chromagram) (*Result, error) {
	if cg == nil {
		return nil, fmt.Errorf("%w: nil chromagram", ErrInvalidInput)
	}
	if err := chroma.ValidateGeometry(cg.SampleRate(), cg.HopLength()); err != nil {
		return nil, err
	}

	startTime := time.Now()
	logger := e.logger.WithFields(logging.Fields{
		"function": "Run",
		"frames":   cg.Frames(),
	})

	conditioned, err := e.conditioner.Condition(ctx, cg)
	if err != nil {
		return nil, err
	}

	labels, mask, filtered, gated, err := e.classifyFrames(ctx, conditioned)
	if err != nil {
		return nil, err
	}

	smoother := temporal.NewShortEventSmoother(e.params.SilenceSeconds, cg.SampleRate(), cg.HopLength())
	binary := smoother.Smooth(mask)
	filtered.Apply(func(i, j int, v float64) float64 {
		if binary.At(i, j) == 0 {
			return 0
		}
		return v
	}, filtered)

	active := activeFrames(binary)

	builder := progression.NewBuilder(cg.SampleRate(), cg.HopLength())
	raw := builder.Build(labels, active)
	raw = progression.ApplyTerminal(raw, e.params.TerminalPolicy, builder.TrackEnd(cg.Frames()))
	chords := progression.Refine(raw)

	logger.Debug("Segmentation completed", logging.Fields{
		"frames_gated":    gated,
		"raw_chords":      len(raw),
		"refined_chords":  len(chords),
		"smoother_window": smoother.HalfWindow(),
	})

	result := &Result{
		ID:          uuid.NewString(),
		SampleRate:  cg.SampleRate(),
		HopLength:   cg.HopLength(),
		Frames:      cg.Frames(),
		Duration:    cg.Duration(),
		Chords:      chords,
		FramesGated: gated,
		ProcessTime: float64(time.Since(startTime).Nanoseconds()) / 1e6,
	}
	if result.Chords == nil {
		result.Chords = []progression.Chord{}
	}

	if e.params.Diagnostics {
		result.Diagnostics = &Diagnostics{
			Magnitude:         denseRows(conditioned.Magnitude),
			Trend:             denseRows(conditioned.Trend),
			FilteredMagnitude: denseRows(filtered),
			Binary:            denseRows(binary),
		}
	}

	return result, nil
}

// classifyFrames selects and classifies the notes of every frame. It
// returns the per-frame labels, the unsmoothed binary mask, the magnitude
// of every selected note and the number of labelled frames.
func (e *Engine) classifyFrames(ctx context.Context, conditioned *Conditioned) ([]*tonal.ChordLabel, *mat.Dense, *mat.Dense, int, error) {
	rows, cols := conditioned.Magnitude.Dims()
	labels := make([]*tonal.ChordLabel, cols)
	mask := mat.NewDense(rows, cols, nil)
	filtered := mat.NewDense(rows, cols, nil)

	magnitudes := make([]float64, rows)
	trend := make([]float64, rows)
	gated := 0

	for j := range cols {
		if j%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, nil, 0, err
			}
		}

		mat.Col(magnitudes, j, conditioned.Magnitude)
		mat.Col(trend, j, conditioned.Trend)

		notes := e.selector.Select(magnitudes, trend)
		for _, pc := range notes {
			filtered.Set(pc, j, magnitudes[pc])
		}

		label, ok := e.classifier.Classify(notes)
		if !ok {
			continue
		}
		for _, pc := range notes {
			mask.Set(pc, j, 1)
		}
		labels[j] = &label
		gated++
	}

	return labels, mask, filtered, gated, nil
}

// activeFrames reports the frames with at least one active pitch class
func activeFrames(binary mat.Matrix) []bool {
	rows, cols := binary.Dims()
	active := make([]bool, cols)
	for j := range cols {
		for i := range rows {
			if binary.At(i, j) > 0 {
				active[j] = true
				break
			}
		}
	}
	return active
}

// IsInvalidInput reports whether err was caused by malformed input
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
