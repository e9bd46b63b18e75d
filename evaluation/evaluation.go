// Package evaluation scores an estimated chord timeline against reference
// annotations by the fraction of time both agree.
package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-chords/progression"
)

// Segment is a labelled time span in seconds
type Segment struct {
	Label string  `json:"label"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// LabelStats holds per-label agreement
type LabelStats struct {
	Reference float64 `json:"reference"` // Seconds annotated with the label
	Matched   float64 `json:"matched"`   // Seconds where the estimate agrees
	Accuracy  float64 `json:"accuracy"`
}

// Report summarises how well an estimate matches the reference
type Report struct {
	Accuracy          float64                `json:"accuracy"`            // Matched time / reference time
	MeanLabelAccuracy float64                `json:"mean_label_accuracy"` // Unweighted mean over reference labels
	ReferenceDuration float64                `json:"reference_duration"`
	MatchedDuration   float64                `json:"matched_duration"`
	Labels            map[string]*LabelStats `json:"labels"`
}

// ParseLabelsFile reads a reference annotation file
func ParseLabelsFile(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels %s: %w", path, err)
	}
	defer f.Close()

	segments, err := ParseLabels(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return segments, nil
}

// ParseLabels reads whitespace separated lines of the form
//
//	<index> <label> <unused> <start> <unused> <end>
//
// Blank lines and lines starting with '#' are skipped.
func ParseLabels(r io.Reader) ([]Segment, error) {
	var segments []Segment

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, fmt.Errorf("line %d: expected 6 fields, got %d", lineNo, len(fields))
		}

		start, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: start: %w", lineNo, err)
		}
		end, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: end: %w", lineNo, err)
		}
		if end < start {
			return nil, fmt.Errorf("line %d: end %g before start %g", lineNo, end, start)
		}

		segments = append(segments, Segment{Label: NormalizeLabel(fields[1]), Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	return segments, nil
}

// NormalizeLabel lower-cases the quality part of tonic_quality labels so
// "C_Major" and "C_major" compare equal
func NormalizeLabel(label string) string {
	tonic, quality, found := strings.Cut(label, "_")
	if !found {
		return label
	}
	return tonic + "_" + strings.ToLower(quality)
}

// FromChords converts a chord timeline into labelled segments
func FromChords(chords []progression.Chord) []Segment {
	segments := make([]Segment, len(chords))
	for i, c := range chords {
		segments[i] = Segment{Label: NormalizeLabel(c.Label()), Start: c.Start, End: c.End()}
	}
	return segments
}

// Compare measures the time the estimate agrees with the reference
func Compare(reference, estimate []Segment) *Report {
	est := slices.Clone(estimate)
	sort.SliceStable(est, func(i, j int) bool { return est[i].Start < est[j].Start })

	report := &Report{Labels: make(map[string]*LabelStats)}
	for _, ref := range reference {
		stats, ok := report.Labels[ref.Label]
		if !ok {
			stats = &LabelStats{}
			report.Labels[ref.Label] = stats
		}
		stats.Reference += ref.Duration()

		for _, e := range est {
			if e.Start >= ref.End {
				break
			}
			if e.Label != ref.Label {
				continue
			}
			if overlap := min(ref.End, e.End) - max(ref.Start, e.Start); overlap > 0 {
				stats.Matched += overlap
			}
		}
	}

	refDurations := make([]float64, 0, len(report.Labels))
	matched := make([]float64, 0, len(report.Labels))
	accuracies := make([]float64, 0, len(report.Labels))
	for _, stats := range report.Labels {
		if stats.Reference > 0 {
			stats.Accuracy = stats.Matched / stats.Reference
		}
		refDurations = append(refDurations, stats.Reference)
		matched = append(matched, stats.Matched)
		accuracies = append(accuracies, stats.Accuracy)
	}

	report.ReferenceDuration = floats.Sum(refDurations)
	report.MatchedDuration = floats.Sum(matched)
	if report.ReferenceDuration > 0 {
		report.Accuracy = report.MatchedDuration / report.ReferenceDuration
	}
	if len(accuracies) > 0 {
		report.MeanLabelAccuracy = stat.Mean(accuracies, nil)
	}

	return report
}
