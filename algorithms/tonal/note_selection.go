package tonal

import (
	"cmp"
	"slices"
)

// NoteSelector picks the sounding pitch classes of one frame.
//
// Pitch classes are visited strongest magnitude first. A class is kept when
// its trend clears MagnitudeThreshold*MaxReference and its magnitude is
// non-zero, or, past the first two, when its trend is above half of the
// previous class's trend. The first class failing both ends the scan.
type NoteSelector struct {
	MagnitudeThreshold float64 `json:"magnitude_threshold"`
	MaxReference       float64 `json:"max_reference"`
}

// NewNoteSelector creates a note selector
func NewNoteSelector(magnitudeThreshold, maxReference float64) *NoteSelector {
	return &NoteSelector{
		MagnitudeThreshold: magnitudeThreshold,
		MaxReference:       maxReference,
	}
}

// SortByMagnitude returns pitch-class indices ordered by descending
// magnitude. Equal magnitudes keep ascending index order.
func SortByMagnitude(magnitudes []float64) []int {
	order := make([]int, len(magnitudes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(magnitudes[b], magnitudes[a])
	})
	return order
}

// Select returns the active pitch classes, strongest first
func (ns *NoteSelector) Select(magnitudes, trend []float64) []int {
	order := SortByMagnitude(magnitudes)
	gate := ns.MagnitudeThreshold * ns.MaxReference

	var notes []int
	for i, pc := range order {
		switch {
		case trend[pc] > gate && magnitudes[pc] > 0:
			notes = append(notes, pc)
		case i >= 2 && trend[pc] > 0.5*trend[order[i-1]]:
			notes = append(notes, pc)
		default:
			return notes
		}
	}
	return notes
}
