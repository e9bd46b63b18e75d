package evaluation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/progression"
)

const labels = `1 C_major x 0.0 x 2.0
2 G_major x 2.0 x 4.0

# trailing comment
3 A_Minor x 4.0 x 5.0
`

func TestParseLabels(t *testing.T) {
	segments, err := ParseLabels(strings.NewReader(labels))
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Label: "C_major", Start: 0, End: 2},
		{Label: "G_major", Start: 2, End: 4},
		{Label: "A_minor", Start: 4, End: 5},
	}, segments)
}

func TestParseLabelsErrors(t *testing.T) {
	tests := map[string]string{
		"short line":  "1 C_major x 0.0",
		"bad start":   "1 C_major x zero x 1.0",
		"bad end":     "1 C_major x 0.0 x one",
		"end < start": "1 C_major x 2.0 x 1.0",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLabels(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestParseLabelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Labels.txt")
	require.NoError(t, os.WriteFile(path, []byte(labels), 0o644))

	segments, err := ParseLabelsFile(path)
	require.NoError(t, err)
	assert.Len(t, segments, 3)

	_, err = ParseLabelsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFromChords(t *testing.T) {
	segments := FromChords([]progression.Chord{
		{Tonic: "C", Quality: tonal.ChordMajor, Start: 0, Duration: 1.5},
		{Tonic: "F#", Quality: tonal.ChordMin7, Start: 1.5, Duration: 0.5},
	})
	assert.Equal(t, []Segment{
		{Label: "C_major", Start: 0, End: 1.5},
		{Label: "F#_minor-7th", Start: 1.5, End: 2},
	}, segments)
}

func TestComparePerfect(t *testing.T) {
	ref, err := ParseLabels(strings.NewReader(labels))
	require.NoError(t, err)

	report := Compare(ref, ref)
	assert.InDelta(t, 1.0, report.Accuracy, 1e-12)
	assert.InDelta(t, 1.0, report.MeanLabelAccuracy, 1e-12)
	assert.InDelta(t, 5.0, report.ReferenceDuration, 1e-12)
}

func TestComparePartial(t *testing.T) {
	ref := []Segment{
		{Label: "C_major", Start: 0, End: 2},
		{Label: "G_major", Start: 2, End: 4},
	}
	est := []Segment{
		{Label: "G_major", Start: 2.5, End: 4},
		{Label: "C_major", Start: 0, End: 1.5},
		{Label: "C_7th", Start: 1.5, End: 2.5},
	}

	report := Compare(ref, est)
	assert.InDelta(t, 3.0/4.0, report.Accuracy, 1e-12)
	assert.InDelta(t, 0.75, report.Labels["C_major"].Accuracy, 1e-12)
	assert.InDelta(t, 0.75, report.Labels["G_major"].Accuracy, 1e-12)
	assert.InDelta(t, 0.75, report.MeanLabelAccuracy, 1e-12)
}

func TestCompareEmpty(t *testing.T) {
	report := Compare(nil, nil)
	assert.Equal(t, 0.0, report.Accuracy)
	assert.Empty(t, report.Labels)
}
