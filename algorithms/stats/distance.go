package stats

import (
	"cmp"
	"container/heap"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// DistanceMetric selects how two feature vectors are compared
type DistanceMetric int

const (
	EuclideanDistance DistanceMetric = iota
	CosineDistance
)

// DistanceFunction is a function type for computing distance between two vectors
type DistanceFunction func(a, b []float64) float64

// GetDistanceFunction returns the appropriate distance function for the given metric
func GetDistanceFunction(metric DistanceMetric) DistanceFunction {
	switch metric {
	case CosineDistance:
		return CosineDistanceFunc
	default:
		return EuclideanDistanceFunc
	}
}

// EuclideanDistanceFunc calculates Euclidean distance between two points
func EuclideanDistanceFunc(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// CosineDistanceFunc calculates cosine distance (1 - cosine similarity).
// A zero vector is maximally distant from everything.
func CosineDistanceFunc(a, b []float64) float64 {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 1.0
	}

	similarity := floats.Dot(a, b) / (normA * normB)
	return 1.0 - math.Max(-1, math.Min(1, similarity))
}

// Neighbor is a candidate returned by NearestNeighbors
type Neighbor struct {
	Index    int
	Distance float64
}

// closer orders neighbours by distance, then by ascending index
func closer(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}

// neighborHeap is a max-heap on (distance, index); the root is the worst
// candidate kept so far
type neighborHeap []Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *neighborHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// NeighborIndex answers repeated k-nearest queries over a fixed point set.
// Norms are computed once, and each query keeps only k candidates.
type NeighborIndex struct {
	data   [][]float64
	norms  []float64
	metric DistanceMetric
}

// NewNeighborIndex indexes data. The slices are referenced, not copied.
func NewNeighborIndex(data [][]float64, metric DistanceMetric) *NeighborIndex {
	norms := make([]float64, len(data))
	for i, point := range data {
		norms[i] = floats.Norm(point, 2)
	}
	return &NeighborIndex{data: data, norms: norms, metric: metric}
}

// Len returns the number of indexed points
func (idx *NeighborIndex) Len() int {
	return len(idx.data)
}

func (idx *NeighborIndex) distance(query []float64, queryNorm float64, i int) float64 {
	if idx.metric != CosineDistance {
		return floats.Distance(query, idx.data[i], 2)
	}
	if queryNorm == 0 || idx.norms[i] == 0 {
		return 1.0
	}
	similarity := floats.Dot(query, idx.data[i]) / (queryNorm * idx.norms[i])
	return 1.0 - math.Max(-1, math.Min(1, similarity))
}

// Nearest returns the indices of the k indexed points closest to query,
// nearest first. Points for which exclude returns true are skipped. Ties are
// broken by ascending index so the result is deterministic.
func (idx *NeighborIndex) Nearest(query []float64, k int, exclude func(int) bool) []int {
	if k <= 0 {
		return []int{}
	}

	queryNorm := floats.Norm(query, 2)
	h := make(neighborHeap, 0, min(k, len(idx.data)))
	for i := range idx.data {
		if exclude != nil && exclude(i) {
			continue
		}
		candidate := Neighbor{Index: i, Distance: idx.distance(query, queryNorm, i)}
		if h.Len() < k {
			heap.Push(&h, candidate)
		} else if closer(candidate, h[0]) {
			h[0] = candidate
			heap.Fix(&h, 0)
		}
	}

	slices.SortFunc(h, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})

	result := make([]int, len(h))
	for i, n := range h {
		result[i] = n.Index
	}
	return result
}

// NearestNeighbors is a one-shot NeighborIndex query
func NearestNeighbors(query []float64, data [][]float64, k int, metric DistanceMetric, exclude func(int) bool) []int {
	return NewNeighborIndex(data, metric).Nearest(query, k, exclude)
}
