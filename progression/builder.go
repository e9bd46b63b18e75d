package progression

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// TimeDecimals is the rounding applied to every start and duration
const TimeDecimals = 3

// TerminalPolicy decides the duration of the final timeline entry
type TerminalPolicy string

const (
	// TerminalZero leaves the final entry with zero duration
	TerminalZero TerminalPolicy = "zero"
	// TerminalTrackEnd stretches the final entry to the end of the track
	TerminalTrackEnd TerminalPolicy = "track-end"
)

// ParseTerminalPolicy resolves a policy name
func ParseTerminalPolicy(name string) (TerminalPolicy, error) {
	switch p := TerminalPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case TerminalZero, TerminalTrackEnd:
		return p, nil
	default:
		return "", fmt.Errorf("unknown terminal policy %q", name)
	}
}

// Builder turns a per-frame label stream into a chord timeline
type Builder struct {
	sampleRate int
	hopLength  int
}

// NewBuilder creates a builder for the given frame geometry
func NewBuilder(sampleRate, hopLength int) *Builder {
	return &Builder{sampleRate: sampleRate, hopLength: hopLength}
}

// Build walks frames in order. Frames with no label or no active pitch
// class are skipped, and an entry is emitted only when the label differs
// from the last emitted one. The final entry has zero duration.
func (b *Builder) Build(labels []*tonal.ChordLabel, active []bool) []Chord {
	var chords []Chord
	for i, label := range labels {
		if label == nil || i >= len(active) || !active[i] {
			continue
		}

		chord := Chord{
			Tonic:   label.Tonic(),
			Quality: label.Quality,
			Start:   common.RoundTo(chroma.FrameTime(i, b.hopLength, b.sampleRate), TimeDecimals),
		}
		if n := len(chords); n > 0 && chords[n-1].SameLabel(chord) {
			continue
		}
		chords = append(chords, chord)
	}

	AssignDurations(chords)
	return Collapse(chords)
}

// TrackEnd returns the time of the frame after the last one
func (b *Builder) TrackEnd(frames int) float64 {
	return common.RoundTo(chroma.FrameTime(frames, b.hopLength, b.sampleRate), TimeDecimals)
}

// AssignDurations sets every duration from the next entry's start. The
// final entry gets zero.
func AssignDurations(chords []Chord) {
	for i := range chords {
		if i+1 < len(chords) {
			chords[i].Duration = common.RoundTo(chords[i+1].Start-chords[i].Start, TimeDecimals)
		} else {
			chords[i].Duration = 0
		}
	}
}

// Collapse merges adjacent entries sharing a label. Each entry is compared
// with the last kept one, which is extended to the end of what it absorbs.
func Collapse(chords []Chord) []Chord {
	collapsed := make([]Chord, 0, len(chords))
	for _, chord := range chords {
		if n := len(collapsed); n > 0 && collapsed[n-1].SameLabel(chord) {
			kept := &collapsed[n-1]
			kept.Duration = common.RoundTo(max(kept.End(), chord.End())-kept.Start, TimeDecimals)
			continue
		}
		collapsed = append(collapsed, chord)
	}
	return collapsed
}

// ApplyTerminal sets the final entry's duration according to policy and
// returns a new slice
func ApplyTerminal(chords []Chord, policy TerminalPolicy, trackEnd float64) []Chord {
	out := make([]Chord, len(chords))
	copy(out, chords)
	if len(out) == 0 {
		return out
	}

	last := &out[len(out)-1]
	switch policy {
	case TerminalTrackEnd:
		last.Duration = common.RoundTo(max(0, trackEnd-last.Start), TimeDecimals)
	default:
		last.Duration = 0
	}
	return out
}
