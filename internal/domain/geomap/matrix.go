// Package geomap models the census-division → region conversion weights.
//
// A Matrix is one numeric table: rows are origin census divisions in registry
// order, columns are destination regions addressed by name.  A Set is the
// table collection of one building class, either a single flat Matrix or a
// fuel-keyed collection in which a fuel may carry a flat matrix, stock and
// floor-area variants, or End Use Load Profile matrices per metric and end use.
package geomap

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Matrix is a named-column weight table backed by a dense gonum matrix.
type Matrix struct {
	columns  []string
	colIndex map[string]int
	data     *mat.Dense
}

// NewMatrix builds a Matrix from row-major data.  Every row must have one
// value per column.
func NewMatrix(columns []string, rows [][]float64) (*Matrix, error) {
	if len(columns) == 0 {
		return nil, errs.New(errs.CodeWeightTable, "weight table has no columns")
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.CodeWeightTable, "weight table has no rows")
	}
	flat := make([]float64, 0, len(rows)*len(columns))
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, errs.New(errs.CodeWeightTable, "ragged weight table").
				WithDetailf("row %d has %d values, want %d", i, len(r), len(columns))
		}
		flat = append(flat, r...)
	}
	m := &Matrix{
		columns:  append([]string(nil), columns...),
		colIndex: make(map[string]int, len(columns)),
		data:     mat.NewDense(len(rows), len(columns), flat),
	}
	for i, c := range columns {
		m.colIndex[c] = i
	}
	return m, nil
}

// Columns returns the column names.
func (m *Matrix) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Rows returns the number of origin rows.
func (m *Matrix) Rows() int {
	r, _ := m.data.Dims()
	return r
}

// Column resolves a destination name to its column.  Names containing spaces
// also resolve through their underscore spelling, which is how region names
// appear in delimited headers.
func (m *Matrix) Column(name string) (int, bool) {
	if i, ok := m.colIndex[name]; ok {
		return i, true
	}
	i, ok := m.colIndex[strings.ReplaceAll(name, " ", "_")]
	return i, ok
}

// At returns the weight for (origin row, destination name).
func (m *Matrix) At(origin int, dest string) (float64, error) {
	c, ok := m.Column(dest)
	if !ok {
		return 0, errs.LookupMiss("destination not in weight table").WithDetail(dest)
	}
	if origin < 0 || origin >= m.Rows() {
		return 0, errs.LookupMiss("origin row out of range").
			WithDetailf("row %d of %d", origin, m.Rows())
	}
	return m.data.At(origin, c), nil
}

// RowSums returns the NaN-skipping sum of every row.
func (m *Matrix) RowSums() []float64 {
	r, _ := m.data.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = nanSum(mat.Row(nil, i, m.data))
	}
	return out
}

// ColSums returns the NaN-skipping sum of every column.
func (m *Matrix) ColSums() []float64 {
	_, c := m.data.Dims()
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		out[j] = nanSum(mat.Col(nil, j, m.data))
	}
	return out
}

func nanSum(xs []float64) float64 {
	clean := xs[:0]
	for _, x := range xs {
		if !math.IsNaN(x) {
			clean = append(clean, x)
		}
	}
	return floats.Sum(clean)
}

// Axis selects which sums a table is expected to normalize.
type Axis int

const (
	// ByRow tables distribute each origin's total across destinations
	// (energy and stock data).
	ByRow Axis = iota
	// ByColumn tables average origins into each destination (cost,
	// performance and lifetime data).
	ByColumn
)

// Imbalance names a row or column whose weights do not sum to one.
type Imbalance struct {
	Label string
	Sum   float64
}

// CheckSums reports rows (ByRow) or columns (ByColumn) whose sum differs from
// one by more than tol.  Row labels are 1-based origin codes.
func (m *Matrix) CheckSums(axis Axis, tol float64) []Imbalance {
	var out []Imbalance
	if axis == ByRow {
		for i, s := range m.RowSums() {
			if !scalar.EqualWithinAbs(s, 1, tol) {
				out = append(out, Imbalance{Label: rowLabel(i), Sum: s})
			}
		}
		return out
	}
	for j, s := range m.ColSums() {
		if !scalar.EqualWithinAbs(s, 1, tol) {
			out = append(out, Imbalance{Label: m.columns[j], Sum: s})
		}
	}
	return out
}

func rowLabel(i int) string {
	return "origin " + strconv.Itoa(i+1)
}

//Personal.AI order the ending
