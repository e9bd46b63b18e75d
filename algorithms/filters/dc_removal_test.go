package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCRemovalStripsOffset(t *testing.T) {
	const sampleRate = 8000
	dc := NewDCRemovalWithCutoff(sampleRate, 10)

	signal := make([]float64, sampleRate)
	for i := range signal {
		signal[i] = 0.5 + 0.25*math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}
	out := dc.ProcessBuffer(signal)
	assert.Len(t, out, len(signal))

	// after the transient the output mean is close to zero
	tail := out[sampleRate/2:]
	mean := 0.0
	for _, v := range tail {
		mean += v
	}
	mean /= float64(len(tail))
	assert.InDelta(t, 0.0, mean, 0.01)

	// the tone passes nearly unattenuated
	peak := 0.0
	for _, v := range tail {
		peak = math.Max(peak, math.Abs(v))
	}
	assert.InDelta(t, 0.25, peak, 0.02)
}

func TestDCRemovalCutoff(t *testing.T) {
	dc := NewDCRemovalWithCutoff(22050, 10)
	assert.InDelta(t, 10.0, dc.GetCutoffFrequency(22050), 1e-9)

	assert.Equal(t, 0.995, NewDCRemovalWithCutoff(0, 10).GetPoleLocation())
	assert.Equal(t, 0.001, NewDCRemovalWithCutoff(100, 1000).GetPoleLocation())
	assert.Equal(t, 0.0, dc.GetCutoffFrequency(0))
}

func TestDCRemovalStateless(t *testing.T) {
	dc := NewDCRemoval()
	in := []float64{1, 1, 1, 1}
	assert.Equal(t, dc.ProcessBuffer(in), dc.ProcessBuffer(in))
	assert.Empty(t, dc.ProcessBuffer(nil))
}
