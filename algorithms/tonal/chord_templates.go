package tonal

import (
	"fmt"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
)

// ChordQuality names a chord family
type ChordQuality string

const (
	ChordMajor      ChordQuality = "major"
	ChordMinor      ChordQuality = "minor"
	ChordSus2       ChordQuality = "sus2"
	ChordSus4       ChordQuality = "sus4"
	ChordDom7       ChordQuality = "7th"
	ChordMin7       ChordQuality = "minor-7th"
	ChordPowerChord ChordQuality = "power" // 🤘
)

// ChordTemplate is a canonical 12-bit interval pattern rooted on C. The
// pattern is written MSB first: character p is pitch class p.
type ChordTemplate struct {
	Quality ChordQuality
	Pattern string
}

// Precedence lists every family in matching order; the first match wins.
var Precedence = []ChordTemplate{
	{Quality: ChordDom7, Pattern: "100010010001"},
	{Quality: ChordMin7, Pattern: "100100010001"},
	{Quality: ChordSus2, Pattern: "100001010000"},
	{Quality: ChordSus4, Pattern: "101000010000"},
	{Quality: ChordMajor, Pattern: "100010010000"},
	{Quality: ChordMinor, Pattern: "100100010000"},
	{Quality: ChordPowerChord, Pattern: "100000010000"},
}

// DefaultFamilies is every family except minor-7th, which is off unless
// asked for
func DefaultFamilies() []ChordQuality {
	return []ChordQuality{ChordDom7, ChordSus2, ChordSus4, ChordMajor, ChordMinor, ChordPowerChord}
}

// AllFamilies returns every known family in precedence order
func AllFamilies() []ChordQuality {
	families := make([]ChordQuality, len(Precedence))
	for i, t := range Precedence {
		families[i] = t.Quality
	}
	return families
}

// ParseQuality resolves a family name. "minor 7th" is accepted as an alias.
func ParseQuality(name string) (ChordQuality, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "minor 7th" || name == "min7" {
		return ChordMin7, nil
	}
	if name == "dom7" || name == "seventh" {
		return ChordDom7, nil
	}
	for _, t := range Precedence {
		if string(t.Quality) == name {
			return t.Quality, nil
		}
	}
	return "", fmt.Errorf("unknown chord quality %q", name)
}

// PitchMask encodes a set of pitch classes with bit 11-p set for class p
type PitchMask uint16

// MaskOf returns the mask of the given pitch classes
func MaskOf(notes []int) PitchMask {
	var m PitchMask
	for _, p := range notes {
		m |= 1 << (chroma.NumPitchClasses - 1 - p)
	}
	return m
}

// String renders the mask MSB first
func (m PitchMask) String() string {
	return fmt.Sprintf("%012b", uint16(m))
}

func parsePattern(pattern string) PitchMask {
	var notes []int
	for p, c := range pattern {
		if c == '1' {
			notes = append(notes, p)
		}
	}
	return MaskOf(notes)
}

// Rotate moves every pitch class of m up by root semitones
func (m PitchMask) Rotate(root int) PitchMask {
	var out PitchMask
	for p := range chroma.NumPitchClasses {
		if m&(1<<(chroma.NumPitchClasses-1-p)) != 0 {
			out |= 1 << (chroma.NumPitchClasses - 1 - (p+root)%chroma.NumPitchClasses)
		}
	}
	return out
}

// TemplateMap maps every rotation of a template to its root pitch class
type TemplateMap map[PitchMask]int

// BuildTemplateMap rotates t through all twelve roots
func BuildTemplateMap(t ChordTemplate) TemplateMap {
	base := parsePattern(t.Pattern)
	tm := make(TemplateMap, chroma.NumPitchClasses)
	for root := range chroma.NumPitchClasses {
		tm[base.Rotate(root)] = root
	}
	return tm
}

// ChordLabel is a classified frame: root pitch class and family
type ChordLabel struct {
	Root    int
	Quality ChordQuality
}

// Tonic returns the note name of the root
func (l ChordLabel) Tonic() string {
	return chroma.NoteNames[l.Root]
}

func (l ChordLabel) String() string {
	return l.Tonic() + " " + string(l.Quality)
}

// ClassifierParams bounds the note sets the classifier accepts
type ClassifierParams struct {
	MinNotes      int            `json:"min_notes"`      // Fewer notes never form a chord
	MaxNotes      int            `json:"max_notes"`      // Denser clusters are rejected
	TemplateNotes int            `json:"template_notes"` // Strongest notes encoded into the mask
	Families      []ChordQuality `json:"families"`       // Enabled families; matching order is fixed
}

// DefaultClassifierParams returns the standard chord classifier settings
func DefaultClassifierParams() ClassifierParams {
	return ClassifierParams{
		MinNotes:      2,
		MaxNotes:      6,
		TemplateNotes: 4,
		Families:      DefaultFamilies(),
	}
}

type family struct {
	quality   ChordQuality
	templates TemplateMap
}

// Classifier maps note sets to chord labels by rotation-invariant template
// matching. Its tables are built once and never modified, so one Classifier
// can serve any number of goroutines.
type Classifier struct {
	params   ClassifierParams
	families []family
}

// NewClassifier builds the template tables for the enabled families
func NewClassifier(params ClassifierParams) (*Classifier, error) {
	if params.MinNotes < 1 || params.MaxNotes < params.MinNotes {
		return nil, fmt.Errorf("invalid note bounds [%d, %d]", params.MinNotes, params.MaxNotes)
	}
	if params.TemplateNotes < 1 {
		return nil, fmt.Errorf("template notes must be positive, got %d", params.TemplateNotes)
	}

	for _, q := range params.Families {
		if !slices.ContainsFunc(Precedence, func(t ChordTemplate) bool { return t.Quality == q }) {
			return nil, fmt.Errorf("unknown chord quality %q", q)
		}
	}

	c := &Classifier{params: params}
	for _, t := range Precedence {
		if slices.Contains(params.Families, t.Quality) {
			c.families = append(c.families, family{quality: t.Quality, templates: BuildTemplateMap(t)})
		}
	}
	return c, nil
}

// Families returns the enabled families in matching order
func (c *Classifier) Families() []ChordQuality {
	out := make([]ChordQuality, len(c.families))
	for i, f := range c.families {
		out[i] = f.quality
	}
	return out
}

// Classify labels a note set ordered strongest first. Sets outside the
// configured size bounds and unmatched masks yield ok == false.
func (c *Classifier) Classify(notes []int) (label ChordLabel, ok bool) {
	if len(notes) < c.params.MinNotes || len(notes) > c.params.MaxNotes {
		return ChordLabel{}, false
	}

	mask := MaskOf(notes[:min(len(notes), c.params.TemplateNotes)])
	for _, f := range c.families {
		if root, found := f.templates[mask]; found {
			return ChordLabel{Root: root, Quality: f.quality}, true
		}
	}
	return ChordLabel{}, false
}
