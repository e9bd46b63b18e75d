package common

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ColumnMax returns the maximum of each column of m
func ColumnMax(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	maxima := make([]float64, cols)
	col := make([]float64, rows)
	for j := range cols {
		mat.Col(col, j, m)
		maxima[j] = floats.Max(col)
	}
	return maxima
}

// NormalizeColumns returns a copy of m with every column divided by its
// maximum. Columns whose maximum is zero are divided by 1.
func NormalizeColumns(m mat.Matrix) *mat.Dense {
	maxima := ColumnMax(m)
	for j, v := range maxima {
		if v == 0 {
			maxima[j] = 1
		}
	}

	out := mat.DenseCopyOf(m)
	out.Apply(func(_, j int, v float64) float64 {
		return v / maxima[j]
	}, out)
	return out
}

// MedianFilterRows applies MedianFilter to every row of m independently
func MedianFilterRows(m mat.Matrix, windowSize int) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	row := make([]float64, cols)
	for i := range rows {
		mat.Row(row, i, m)
		out.SetRow(i, MedianFilter(row, windowSize))
	}
	return out
}
