package chroma

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/stats"
)

// OutlierFilter suppresses transient energy in a 12×T matrix. Implementations
// must never increase a cell and must return ctx.Err() once ctx is done.
type OutlierFilter interface {
	Filter(ctx context.Context, m mat.Matrix) (*mat.Dense, error)
}

// filterCheckInterval is how many frames run between context checks
const filterCheckInterval = 256

// NNFilter replaces every frame by the element-wise median of the frames
// most similar to it (self excluded), then keeps the minimum of the original
// and the estimate. Repeating patterns survive, one-off bursts are pulled
// down to what similar frames look like.
type NNFilter struct {
	// Neighbors is the number of similar frames consulted. Zero selects
	// 2*ceil(sqrt(T-1)).
	Neighbors int
	Metric    stats.DistanceMetric
}

// NewNNFilter creates a cosine-similarity nearest-neighbour median filter
func NewNNFilter() *NNFilter {
	return &NNFilter{Metric: stats.CosineDistance}
}

func (f *NNFilter) neighborCount(frames int) int {
	if f.Neighbors > 0 {
		return f.Neighbors
	}
	return 2 * int(math.Ceil(math.Sqrt(float64(frames-1))))
}

// Filter returns min(m, median over each frame's nearest neighbours)
func (f *NNFilter) Filter(ctx context.Context, m mat.Matrix) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, cols := m.Dims()
	out := mat.DenseCopyOf(m)
	if cols < 2 {
		return out, nil
	}

	frames := make([][]float64, cols)
	for j := range cols {
		frames[j] = mat.Col(nil, j, m)
	}

	index := stats.NewNeighborIndex(frames, f.Metric)
	k := f.neighborCount(cols)
	values := make([]float64, 0, k)
	for j := range cols {
		if j%filterCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		neighbors := index.Nearest(frames[j], k, func(i int) bool { return i == j })
		if len(neighbors) == 0 {
			continue
		}

		for i := range rows {
			values = values[:0]
			for _, n := range neighbors {
				values = append(values, frames[n][i])
			}
			estimate := common.Median(values)
			if estimate < frames[j][i] {
				out.Set(i, j, estimate)
			}
		}
	}

	return out, nil
}

// PassThroughFilter leaves the matrix untouched
type PassThroughFilter struct{}

func (PassThroughFilter) Filter(ctx context.Context, m mat.Matrix) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(m), nil
}
