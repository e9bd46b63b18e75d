package progression

import (
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// transitions lists the (short, long) quality pairs treated as flicker
// when the short one directly precedes the long one on the same tonic
var transitions = map[Quality]Quality{
	tonal.ChordDom7: tonal.ChordMajor,
	tonal.ChordMin7: tonal.ChordMinor,
}

// IsTransition reports whether c should be dropped in favour of next
func IsTransition(c, next Chord) bool {
	target, ok := transitions[c.Quality]
	return ok && c.Tonic == next.Tonic && next.Quality == target && c.Duration < next.Duration
}

// Refine drops short seventh chords that precede a longer plain chord of
// the same tonic. The following chord takes over the dropped span. Drop
// decisions look at the input timeline only; the result is collapsed.
func Refine(chords []Chord) []Chord {
	refined := make([]Chord, 0, len(chords))

	absorbing := false
	var absorbStart float64
	for i, chord := range chords {
		if absorbing {
			chord.Duration = common.RoundTo(chord.End()-absorbStart, TimeDecimals)
			chord.Start = absorbStart
			absorbing = false
		}

		if i+1 < len(chords) && IsTransition(chords[i], chords[i+1]) {
			absorbing = true
			absorbStart = chord.Start
			continue
		}
		refined = append(refined, chord)
	}

	return Collapse(refined)
}
