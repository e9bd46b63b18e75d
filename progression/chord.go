package progression

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// Quality is the chord family tag carried by a timeline entry
type Quality = tonal.ChordQuality

// Chord is one segment of a chord timeline
type Chord struct {
	Tonic    string  `json:"tonic"`    // Root note name (C, C#, D, Eb, ...)
	Quality  Quality `json:"quality"`  // Chord family
	Start    float64 `json:"start"`    // Seconds, rounded to milliseconds
	Duration float64 `json:"duration"` // Seconds, rounded to milliseconds
}

// End returns Start + Duration
func (c Chord) End() float64 {
	return c.Start + c.Duration
}

// SameLabel reports whether both chords share tonic and quality
func (c Chord) SameLabel(other Chord) bool {
	return c.Tonic == other.Tonic && c.Quality == other.Quality
}

// Label renders the chord as tonic_quality, the reference label format
func (c Chord) Label() string {
	return c.Tonic + "_" + string(c.Quality)
}

func (c Chord) String() string {
	return fmt.Sprintf("%s %s %s (%.3fs)", Stopwatch(c.Start), c.Tonic, c.Quality, c.Duration)
}

// Stopwatch formats seconds as mm:ss.mmm
func Stopwatch(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	minutes := totalMillis / 60000
	secs := (totalMillis / 1000) % 60
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d.%03d", minutes, secs, millis)
}
