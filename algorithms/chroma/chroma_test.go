package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-chords/transcode"
)

func constantRows(frames int, value float64) [][]float64 {
	rows := make([][]float64, NumPitchClasses)
	for i := range rows {
		rows[i] = make([]float64, frames)
		for j := range rows[i] {
			rows[i][j] = value
		}
	}
	return rows
}

func TestNewChromagramValidation(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]float64
		sr     int
		hop    int
		errMsg string
	}{
		{name: "wrong row count", rows: constantRows(4, 1)[:11], sr: 22050, hop: 512, errMsg: "expected 12"},
		{name: "no frames", rows: constantRows(0, 1), sr: 22050, hop: 512, errMsg: "no frames"},
		{name: "zero sample rate", rows: constantRows(4, 1), sr: 0, hop: 512, errMsg: "sample rate"},
		{name: "zero hop", rows: constantRows(4, 1), sr: 22050, hop: 0, errMsg: "hop length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChromagram(tt.rows, tt.sr, tt.hop)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewChromagramRejectsBadCells(t *testing.T) {
	rows := constantRows(3, 1)
	rows[4][2] = -0.5

	_, err := NewChromagram(rows, 22050, 512)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 4, verr.Row)
	assert.Equal(t, 2, verr.Column)

	rows = constantRows(3, 1)
	rows[0][0] = math.NaN()
	_, err = NewChromagram(rows, 22050, 512)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChromagramIsImmutable(t *testing.T) {
	rows := constantRows(2, 1)
	c, err := NewChromagram(rows, 22050, 512)
	require.NoError(t, err)

	rows[0][0] = 42
	c.Dense().Set(1, 1, 42)
	c.Rows()[2][0] = 42

	assert.Equal(t, 1.0, c.At(0, 0))
	assert.Equal(t, 1.0, c.At(1, 1))
	assert.Equal(t, 1.0, c.At(2, 0))
}

func TestFrameTime(t *testing.T) {
	assert.Equal(t, 0.0, FrameTime(0, 512, 22050))
	assert.InDelta(t, 512.0/22050.0*10, FrameTime(10, 512, 22050), 1e-12)

	c, err := NewChromagram(constantRows(100, 0), 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Duration())
}

func TestChromagramJSON(t *testing.T) {
	rows := constantRows(2, 0)
	rows[9][1] = 3
	c, err := NewChromagram(rows, 44100, 1024)
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Chromagram
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 44100, decoded.SampleRate())
	assert.Equal(t, 1024, decoded.HopLength())
	assert.Equal(t, 3.0, decoded.At(9, 1))

	err = json.Unmarshal([]byte(`{"sample_rate":22050,"hop_length":512,"chroma":[[1]]}`), &decoded)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNNFilterNeverIncreases(t *testing.T) {
	frames := 20
	m := mat.NewDense(NumPitchClasses, frames, nil)
	for j := range frames {
		// steady C major triad
		m.Set(0, j, 1)
		m.Set(4, j, 0.8)
		m.Set(7, j, 0.9)
	}
	// one-off burst on F#
	m.Set(6, 10, 5)

	out, err := NewNNFilter().Filter(context.Background(), m)
	require.NoError(t, err)
	for i := range NumPitchClasses {
		for j := range frames {
			assert.LessOrEqual(t, out.At(i, j), m.At(i, j))
		}
	}
	assert.Equal(t, 0.0, out.At(6, 10), "burst is replaced by the neighbour consensus")
	assert.Equal(t, 1.0, out.At(0, 10))
}

func TestNNFilterSingleFrame(t *testing.T) {
	m := mat.NewDense(NumPitchClasses, 1, nil)
	m.Set(3, 0, 2)
	out, err := NewNNFilter().Filter(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, out))
}

func randomChroma(frames int) *mat.Dense {
	rng := rand.New(rand.NewPCG(1, 2))
	m := mat.NewDense(NumPitchClasses, frames, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return rng.Float64() }, m)
	return m
}

func TestNNFilterStopsOnCancel(t *testing.T) {
	m := randomChroma(20000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := NewNNFilter().Filter(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start = time.Now()
	_, err = NewNNFilter().Filter(ctx, m)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPassThroughFilter(t *testing.T) {
	m := randomChroma(4)
	out, err := PassThroughFilter{}.Filter(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, out))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = PassThroughFilter{}.Filter(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func sine(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return samples
}

func TestChromaCQTPeaksOnPitchClass(t *testing.T) {
	cqt, err := NewChromaCQTDefault(22050)
	require.NoError(t, err)

	signal := sine(440, 22050, 1)
	c, err := cqt.ComputeChroma(context.Background(), signal, 512)
	require.NoError(t, err)
	assert.Equal(t, len(signal)/512+1, c.Frames())

	mid := mat.Col(nil, c.Frames()/2, c.Dense())
	assert.Equal(t, 9, floats.MaxIdx(mid), "440 Hz lands on A")
}

func TestChromaCQTBins(t *testing.T) {
	cqt, err := NewChromaCQTDefault(22050)
	require.NoError(t, err)

	freqs := cqt.GetCQTFrequencies()
	require.Len(t, freqs, 60, "five octaves of semitones")
	assert.InDelta(t, 65.4, freqs[0], 1e-9)
	assert.InDelta(t, 130.8, freqs[12], 1e-9)
	assert.InDelta(t, 1/(math.Pow(2, 1.0/12)-1), cqt.GetQFactor(), 1e-12)

	freqs[0] = 0
	assert.InDelta(t, 65.4, cqt.GetCQTFrequencies()[0], 1e-9, "returns a copy")
}

func TestNewChromaCQTValidation(t *testing.T) {
	_, err := NewChromaCQT(22050, 100, 50, 12, 0, 440)
	assert.Error(t, err)
	_, err = NewChromaCQT(8000, 65.4, 5000, 12, 0, 440)
	assert.Error(t, err)
	_, err = NewChromaCQT(22050, 65.4, 2093, 7, 0, 440)
	assert.Error(t, err)
	_, err = NewChromaCQT(22050, 100, 102, 12, 0, 440)
	assert.Error(t, err)
}

func TestChromaCQTHonoursContext(t *testing.T) {
	cqt, err := NewChromaCQTDefault(22050)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cqt.ComputeChroma(ctx, sine(440, 22050, 0.1), 512)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeDecoder struct {
	audio *transcode.AudioData
	err   error
}

func (f fakeDecoder) DecodeFile(context.Context, string) (*transcode.AudioData, error) {
	return f.audio, f.err
}

func TestCQTProvider(t *testing.T) {
	provider := NewCQTProvider(fakeDecoder{audio: &transcode.AudioData{
		PCM:        sine(261.63, 22050, 0.5),
		SampleRate: 22050,
		Channels:   1,
	}})

	c, err := provider.Chromagram(context.Background(), "c4.wav", 512)
	require.NoError(t, err)
	assert.Equal(t, 22050, c.SampleRate())
	assert.Equal(t, 512, c.HopLength())

	mid := mat.Col(nil, c.Frames()/2, c.Dense())
	assert.Equal(t, 0, floats.MaxIdx(mid), "middle C lands on C")
}

func TestCQTProviderDecodeError(t *testing.T) {
	provider := NewCQTProvider(fakeDecoder{err: transcode.ErrUnsupportedFormat})
	_, err := provider.Chromagram(context.Background(), "x.ogg", 512)
	assert.ErrorIs(t, err, transcode.ErrUnsupportedFormat)
}
