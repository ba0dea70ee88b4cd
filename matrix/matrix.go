package matrix

import (
	"sort"

	"github.com/guigolab/bammatrix/bias"
	"github.com/guigolab/bammatrix/contact"
	"gonum.org/v1/gonum/mat"
)

// Cell is a matrix entry.
type Cell struct {
	I, J  int
	Value float64
}

// Matrix is a sparse contact matrix in window coordinates.
type Matrix struct {
	Name         string
	Resolution   int
	Mode         Mode
	Values       map[contact.Pair]float64
	Bads1, Bads2 bias.BinSet
}

// Get returns the value of (i, j) and whether it is set.
func (m *Matrix) Get(i, j int) (float64, bool) {
	v, ok := m.Values[contact.Pair{I: i, J: j}]
	return v, ok
}

// Len returns the number of non-empty cells.
func (m *Matrix) Len() int {
	return len(m.Values)
}

// Cells returns the non-empty cells sorted by row then column.
func (m *Matrix) Cells() []Cell {
	cs := make([]Cell, 0, len(m.Values))
	for p, v := range m.Values {
		cs = append(cs, Cell{p.I, p.J, v})
	}
	sort.Slice(cs, func(a, b int) bool {
		if cs[a].I != cs[b].I {
			return cs[a].I < cs[b].I
		}
		return cs[a].J < cs[b].J
	})
	return cs
}

// Dense returns m as a rows x cols dense matrix, empty cells being zero.
// Cells outside the shape are dropped.
func (m *Matrix) Dense(rows, cols int) *mat.Dense {
	d := mat.NewDense(rows, cols, nil)
	for p, v := range m.Values {
		if p.I < rows && p.J < cols {
			d.Set(p.I, p.J, v)
		}
	}
	return d
}
