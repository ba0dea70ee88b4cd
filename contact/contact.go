// Package contact holds sparse contact counts keyed by matrix coordinates.
package contact

import "sort"

// Pair is a (row, column) matrix coordinate.
type Pair struct {
	I, J int
}

// Triple is a single non-zero matrix cell.
type Triple struct {
	I, J  int
	Count int
}

// Counts is a sparse contact count map. Zero entries are never stored.
type Counts map[Pair]int

// Add increments the count of (i, j).
func (c Counts) Add(i, j int) {
	c[Pair{i, j}]++
}

// Update adds the counts of other to c.
func (c Counts) Update(other Counts) {
	for k, v := range other {
		if v != 0 {
			c[k] += v
		}
	}
}

// Half keeps the upper triangle (i <= j) only.
func (c Counts) Half() {
	for p := range c {
		if p.I > p.J {
			delete(c, p)
		}
	}
}

// Total returns the sum of all counts.
func (c Counts) Total() (sum int) {
	for _, v := range c {
		sum += v
	}
	return
}

// Triples returns the cells of c sorted by row then column.
func (c Counts) Triples() []Triple {
	ts := make([]Triple, 0, len(c))
	for p, v := range c {
		if v == 0 {
			continue
		}
		ts = append(ts, Triple{p.I, p.J, v})
	}
	sort.Slice(ts, func(a, b int) bool {
		if ts[a].I != ts[b].I {
			return ts[a].I < ts[b].I
		}
		return ts[a].J < ts[b].J
	})
	return ts
}
