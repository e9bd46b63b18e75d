package segmentation

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/progression"
)

// Params contains parameters for chord segmentation. Every field can be
// overridden per call; DefaultParams matches the reference tuning.
type Params struct {
	HopLength          int     `json:"hop_length" yaml:"hop_length"`                   // Samples per frame for chroma extraction
	MagnitudeThreshold float64 `json:"magnitude_threshold" yaml:"magnitude_threshold"` // Trend gate, as a fraction of MaxReference
	MaxReference       float64 `json:"max_reference" yaml:"max_reference"`             // Reference level of the normalized trend
	SilenceSeconds     float64 `json:"silence_seconds" yaml:"silence_seconds"`         // Shortest event the smoother keeps
	WindowSeconds      float64 `json:"window_seconds" yaml:"window_seconds"`           // Exponential trend window
	ThresholdFraction  float64 `json:"threshold_fraction" yaml:"threshold_fraction"`   // Sigmoid threshold as a fraction of the peak
	WidthFraction      float64 `json:"width_fraction" yaml:"width_fraction"`           // Sigmoid width as a fraction of the peak
	MedianWindow       int     `json:"median_window" yaml:"median_window"`             // Frames in the row median filter

	MinNotes        int                  `json:"min_notes" yaml:"min_notes"`
	MaxNotes        int                  `json:"max_notes" yaml:"max_notes"`
	TemplateNotes   int                  `json:"template_notes" yaml:"template_notes"`
	EnabledFamilies []tonal.ChordQuality `json:"enabled_families" yaml:"enabled_families"`

	TerminalPolicy progression.TerminalPolicy `json:"terminal_policy" yaml:"terminal_policy"`

	NNFilter    bool `json:"nn_filter" yaml:"nn_filter"`       // Nearest-neighbour outlier suppression
	NNNeighbors int  `json:"nn_neighbors" yaml:"nn_neighbors"` // 0 selects 2*ceil(sqrt(T-1))

	Diagnostics bool `json:"diagnostics" yaml:"diagnostics"` // Attach intermediate matrices to the result
}

// DefaultParams returns default chord segmentation parameters
func DefaultParams() Params {
	return Params{
		HopLength:          512,
		MagnitudeThreshold: 0.25,
		MaxReference:       1.0,
		SilenceSeconds:     0.1,
		WindowSeconds:      1.0,
		ThresholdFraction:  0.1,
		WidthFraction:      0.1,
		MedianWindow:       9,
		MinNotes:           2,
		MaxNotes:           6,
		TemplateNotes:      4,
		EnabledFamilies:    tonal.DefaultFamilies(),
		TerminalPolicy:     progression.TerminalTrackEnd,
		NNFilter:           true,
	}
}

// Validate validates the segmentation parameters
func (p *Params) Validate() error {
	families := make([]any, 0, len(tonal.Precedence))
	for _, q := range tonal.AllFamilies() {
		families = append(families, q)
	}

	return validation.ValidateStruct(p,
		validation.Field(&p.HopLength, validation.Required, validation.Min(1)),
		validation.Field(&p.MagnitudeThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&p.MaxReference, validation.Required, validation.Min(0.0)),
		validation.Field(&p.SilenceSeconds, validation.Min(0.0)),
		validation.Field(&p.WindowSeconds, validation.Required, validation.Min(0.0)),
		validation.Field(&p.ThresholdFraction, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&p.WidthFraction, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&p.MedianWindow, validation.Required, validation.Min(1)),
		validation.Field(&p.MinNotes, validation.Required, validation.Min(1), validation.Max(12)),
		validation.Field(&p.MaxNotes, validation.Required, validation.Min(p.MinNotes), validation.Max(12)),
		validation.Field(&p.TemplateNotes, validation.Required, validation.Min(1), validation.Max(12)),
		validation.Field(&p.EnabledFamilies, validation.Required, validation.Each(validation.In(families...))),
		validation.Field(&p.TerminalPolicy, validation.Required,
			validation.In(progression.TerminalZero, progression.TerminalTrackEnd)),
		validation.Field(&p.NNNeighbors, validation.Min(0)),
	)
}

func (p *Params) classifierParams() tonal.ClassifierParams {
	return tonal.ClassifierParams{
		MinNotes:      p.MinNotes,
		MaxNotes:      p.MaxNotes,
		TemplateNotes: p.TemplateNotes,
		Families:      p.EnabledFamilies,
	}
}
