package segmentation

import (
	"context"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/temporal"
)

// Conditioned holds the two views the note selector works on
type Conditioned struct {
	// Magnitude is the gated, median-filtered, column-normalized chroma
	Magnitude *mat.Dense
	// Trend is the gated, column-normalized exponential average
	Trend *mat.Dense
}

// Conditioner suppresses outliers in a chromagram and derives the smoothed
// magnitude and trend matrices. Every step returns a new matrix; the input
// chromagram is never touched.
type Conditioner struct {
	filter            chroma.OutlierFilter
	windowSeconds     float64
	thresholdFraction float64
	widthFraction     float64
	medianWindow      int
}

// NewConditioner creates a conditioner from params
func NewConditioner(params Params) *Conditioner {
	var filter chroma.OutlierFilter = chroma.PassThroughFilter{}
	if params.NNFilter {
		nn := chroma.NewNNFilter()
		nn.Neighbors = params.NNNeighbors
		filter = nn
	}

	return &Conditioner{
		filter:            filter,
		windowSeconds:     params.WindowSeconds,
		thresholdFraction: params.ThresholdFraction,
		widthFraction:     params.WidthFraction,
		medianWindow:      params.MedianWindow,
	}
}

// Condition runs outlier suppression, trend tracking, sigmoid gating,
// median smoothing and column normalization. Only the outlier filter is
// long running; it stops early when ctx is done.
func (c *Conditioner) Condition(ctx context.Context, cg *chroma.Chromagram) (*Conditioned, error) {
	filtered, err := c.filter.Filter(ctx, cg.Dense())
	if err != nil {
		return nil, err
	}

	trend := temporal.NewExpAverage(c.windowSeconds, cg.SampleRate(), cg.HopLength()).Compute(filtered)

	// threshold and width both scale with the global peak
	peak := floats.Max(filtered.RawMatrix().Data)
	threshold := peak * c.thresholdFraction
	width := peak * c.widthFraction

	rows, cols := trend.Dims()
	gated := mat.NewDense(rows, cols, nil)
	gatedTrend := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			g := common.SigmoidGate(trend.At(i, j), threshold, width)
			gated.Set(i, j, filtered.At(i, j)*g)
			gatedTrend.Set(i, j, trend.At(i, j)*g)
		}
	}

	return &Conditioned{
		Magnitude: common.NormalizeColumns(common.MedianFilterRows(gated, c.medianWindow)),
		Trend:     common.NormalizeColumns(gatedTrend),
	}, nil
}
