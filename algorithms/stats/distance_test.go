package stats

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistanceFunc(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistanceFunc([]float64{1, 2, 0}, []float64{2, 4, 0}), 1e-12)
	assert.InDelta(t, 1.0, CosineDistanceFunc([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.Equal(t, 1.0, CosineDistanceFunc([]float64{0, 0}, []float64{0, 1}))
}

func TestNearestNeighborsExcludesAndBreaksTies(t *testing.T) {
	data := [][]float64{
		{1, 0},
		{1, 0},
		{0, 1},
		{1, 0},
	}

	got := NearestNeighbors(data[0], data, 2, CosineDistance, func(i int) bool { return i == 0 })
	assert.Equal(t, []int{1, 3}, got)

	got = NearestNeighbors(data[0], data, 10, EuclideanDistance, nil)
	assert.Equal(t, []int{0, 1, 3, 2}, got)

	assert.Empty(t, NearestNeighbors(data[0], data, 0, CosineDistance, nil))
}

func TestNeighborIndexMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	data := make([][]float64, 300)
	for i := range data {
		point := make([]float64, 12)
		for j := range point {
			// coarse values force plenty of exact distance ties
			point[j] = float64(rng.IntN(3))
		}
		data[i] = point
	}

	for _, metric := range []DistanceMetric{CosineDistance, EuclideanDistance} {
		index := NewNeighborIndex(data, metric)
		assert.Equal(t, len(data), index.Len())
		distFunc := GetDistanceFunction(metric)

		for _, q := range []int{0, 17, 299} {
			exclude := func(i int) bool { return i == q }

			var all []Neighbor
			for i, point := range data {
				if !exclude(i) {
					all = append(all, Neighbor{Index: i, Distance: distFunc(data[q], point)})
				}
			}
			slices.SortStableFunc(all, func(a, b Neighbor) int { return cmp.Compare(a.Distance, b.Distance) })

			for _, k := range []int{1, 5, 34, 400} {
				want := make([]int, 0, k)
				for _, n := range all[:min(k, len(all))] {
					want = append(want, n.Index)
				}
				assert.Equal(t, want, index.Nearest(data[q], k, exclude), "metric %d query %d k %d", metric, q, k)
			}
		}
	}
}
