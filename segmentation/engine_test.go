package segmentation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/progression"
)

// 1000 Hz with a hop of 100 gives ten frames per second
const (
	testSampleRate = 1000
	testHopLength  = 100
)

type segment struct {
	frames int
	notes  map[int]float64
}

func buildChromagram(t *testing.T, segments ...segment) *chroma.Chromagram {
	t.Helper()

	total := 0
	for _, s := range segments {
		total += s.frames
	}

	rows := make([][]float64, chroma.NumPitchClasses)
	for i := range rows {
		rows[i] = make([]float64, total)
	}

	offset := 0
	for _, s := range segments {
		for pc, v := range s.notes {
			for j := offset; j < offset+s.frames; j++ {
				rows[pc][j] = v
			}
		}
		offset += s.frames
	}

	cg, err := chroma.NewChromagram(rows, testSampleRate, testHopLength)
	require.NoError(t, err)
	return cg
}

func twoChordChromagram(t *testing.T) *chroma.Chromagram {
	return buildChromagram(t,
		segment{frames: 30, notes: map[int]float64{0: 1, 4: 0.8, 7: 0.9}},  // C major
		segment{frames: 30, notes: map[int]float64{7: 1, 11: 0.7, 2: 0.9}}, // G major
	)
}

func newTestEngine(t *testing.T, mutate func(*Params)) *Engine {
	t.Helper()
	params := DefaultParams()
	if mutate != nil {
		mutate(&params)
	}
	engine, err := NewEngine(params)
	require.NoError(t, err)
	return engine
}

func TestEngineTwoChords(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Run(context.Background(), twoChordChromagram(t))
	require.NoError(t, err)

	// the C trend needs four frames to fall below half of B's
	assert.Equal(t, []progression.Chord{
		{Tonic: "C", Quality: tonal.ChordMajor, Start: 0, Duration: 3.4},
		{Tonic: "G", Quality: tonal.ChordMajor, Start: 3.4, Duration: 2.6},
	}, result.Chords)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, 60, result.Frames)
	assert.Equal(t, 6.0, result.Duration)
	assert.Equal(t, 56, result.FramesGated)
	assert.Nil(t, result.Diagnostics)
}

func TestEngineTerminalZero(t *testing.T) {
	engine := newTestEngine(t, func(p *Params) { p.TerminalPolicy = progression.TerminalZero })

	result, err := engine.Run(context.Background(), twoChordChromagram(t))
	require.NoError(t, err)
	require.Len(t, result.Chords, 2)
	assert.Equal(t, 0.0, result.Chords[1].Duration)
}

func TestEngineDeterministic(t *testing.T) {
	engine := newTestEngine(t, nil)
	cg := twoChordChromagram(t)

	first, err := engine.Run(context.Background(), cg)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), cg)
	require.NoError(t, err)

	a, err := json.Marshal(first.Chords)
	require.NoError(t, err)
	b, err := json.Marshal(second.Chords)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEngineConcurrentRuns(t *testing.T) {
	engine := newTestEngine(t, nil)
	cg := twoChordChromagram(t)

	want, err := engine.Run(context.Background(), cg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]progression.Chord, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := engine.Run(context.Background(), cg)
			if err == nil {
				results[i] = r.Chords
			}
		}()
	}
	wg.Wait()

	for _, chords := range results {
		assert.Equal(t, want.Chords, chords)
	}
}

func TestEngineSilence(t *testing.T) {
	engine := newTestEngine(t, func(p *Params) { p.Diagnostics = true })
	cg := buildChromagram(t, segment{frames: 20})

	result, err := engine.Run(context.Background(), cg)
	require.NoError(t, err)
	assert.NotNil(t, result.Chords)
	assert.Empty(t, result.Chords)

	for _, m := range [][][]float64{
		result.Diagnostics.Magnitude,
		result.Diagnostics.Trend,
		result.Diagnostics.FilteredMagnitude,
		result.Diagnostics.Binary,
	} {
		require.Len(t, m, 12)
		for _, row := range m {
			require.Len(t, row, 20)
			for _, v := range row {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		}
	}
}

func TestEngineDiagnostics(t *testing.T) {
	engine := newTestEngine(t, func(p *Params) { p.Diagnostics = true })

	result, err := engine.Run(context.Background(), twoChordChromagram(t))
	require.NoError(t, err)
	require.NotNil(t, result.Diagnostics)

	d := result.Diagnostics
	for i := range 12 {
		for j := range 60 {
			if d.Binary[i][j] == 0 {
				assert.Equal(t, 0.0, d.FilteredMagnitude[i][j], "cell %d,%d", i, j)
			}
			assert.LessOrEqual(t, d.Magnitude[i][j], 1.0)
			assert.LessOrEqual(t, d.Trend[i][j], 1.0)
		}
	}
	assert.Equal(t, 1.0, d.Binary[0][0], "C is active in the first frame")
	assert.Equal(t, 0.0, d.Binary[11][0], "B is silent in the first frame")
	assert.Equal(t, 1.0, d.FilteredMagnitude[7][59])
}

func TestEngineSingleFrame(t *testing.T) {
	engine := newTestEngine(t, nil)
	cg := buildChromagram(t, segment{frames: 1, notes: map[int]float64{9: 1, 0: 0.9, 4: 0.8}})

	result, err := engine.Run(context.Background(), cg)
	require.NoError(t, err)
	require.Len(t, result.Chords, 1)
	assert.Equal(t, progression.Chord{Tonic: "A", Quality: tonal.ChordMinor, Start: 0, Duration: 0.1}, result.Chords[0])
}

func TestEngineRejectsNilChromagram(t *testing.T) {
	engine := newTestEngine(t, nil)
	_, err := engine.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, IsInvalidInput(err))
}

func TestEngineHonoursContext(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, twoChordChromagram(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineStopsEarlyOnLongTrack(t *testing.T) {
	// roughly four minutes of chroma at 22050 Hz / hop 512
	const frames = 10000
	rng := rand.New(rand.NewPCG(3, 5))
	rows := make([][]float64, chroma.NumPitchClasses)
	for i := range rows {
		rows[i] = make([]float64, frames)
		for j := range rows[i] {
			rows[i][j] = rng.Float64()
		}
	}
	cg, err := chroma.NewChromagram(rows, 22050, 512)
	require.NoError(t, err)

	engine := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err = engine.Run(ctx, cg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start = time.Now()
	_, err = engine.Run(ctx, cg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewEngineRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{name: "zero hop", mutate: func(p *Params) { p.HopLength = 0 }},
		{name: "negative silence", mutate: func(p *Params) { p.SilenceSeconds = -1 }},
		{name: "zero width", mutate: func(p *Params) { p.WidthFraction = 0 }},
		{name: "max below min", mutate: func(p *Params) { p.MaxNotes = 1 }},
		{name: "unknown family", mutate: func(p *Params) { p.EnabledFamilies = []tonal.ChordQuality{"diminished"} }},
		{name: "no families", mutate: func(p *Params) { p.EnabledFamilies = nil }},
		{name: "unknown terminal policy", mutate: func(p *Params) { p.TerminalPolicy = "forever" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			_, err := NewEngine(params)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestDefaultParamsValid(t *testing.T) {
	params := DefaultParams()
	assert.NoError(t, params.Validate())
	assert.NotContains(t, params.EnabledFamilies, tonal.ChordMin7)
}

func TestConditionerDoesNotModifyInput(t *testing.T) {
	cg := twoChordChromagram(t)
	before := cg.Dense()

	conditioned, err := NewConditioner(DefaultParams()).Condition(context.Background(), cg)
	require.NoError(t, err)
	assert.Equal(t, before.RawMatrix().Data, cg.Dense().RawMatrix().Data)

	rows, cols := conditioned.Magnitude.Dims()
	assert.Equal(t, 12, rows)
	assert.Equal(t, 60, cols)
}

type fakeProvider struct {
	cg  *chroma.Chromagram
	err error
	hop int
}

func (f *fakeProvider) Chromagram(_ context.Context, _ string, hopLength int) (*chroma.Chromagram, error) {
	f.hop = hopLength
	return f.cg, f.err
}

func TestNewAnalyzerRequiresProvider(t *testing.T) {
	_, err := NewAnalyzer(nil, DefaultParams())
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestAnalyzerAnalyze(t *testing.T) {
	provider := &fakeProvider{cg: twoChordChromagram(t)}
	analyzer, err := NewAnalyzer(provider, DefaultParams())
	require.NoError(t, err)

	result, err := analyzer.Analyze(context.Background(), "song.wav")
	require.NoError(t, err)
	assert.Equal(t, "song.wav", result.Source)
	assert.Len(t, result.Chords, 2)
	assert.Equal(t, 512, provider.hop)
}

func TestAnalyzerProviderError(t *testing.T) {
	boom := errors.New("boom")
	analyzer, err := NewAnalyzer(&fakeProvider{err: boom}, DefaultParams())
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), "song.wav")
	assert.ErrorIs(t, err, boom)
}
