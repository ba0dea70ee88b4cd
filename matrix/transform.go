// Package matrix assembles per-chunk contact artifacts into a sparse matrix,
// normalizes it and serializes it.
package matrix

import (
	"fmt"
	"math"
	"strings"

	"github.com/guigolab/bammatrix/bias"
	"github.com/guigolab/bammatrix/genome"
)

// Mode is a normalization mode.
type Mode string

const (
	Raw   Mode = "raw"
	Norm  Mode = "norm"
	Decay Mode = "decay"
)

// Modes lists the supported modes in output order.
var Modes = []Mode{Raw, Norm, Decay}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown normalization %q", s)
}

// Prefix returns the output file prefix of m.
func (m Mode) Prefix() string {
	switch m {
	case Norm:
		return "nrm"
	case Decay:
		return "dec"
	}
	return "raw"
}

// Kind is the transform applied to raw counts.
type Kind int

const (
	KindRaw Kind = iota
	KindNorm
	// KindDecaySingle divides by the decay at distance |i-j|.
	KindDecaySingle
	// KindDecayCross divides by the decay at the distance between the global
	// positions of i and j.
	KindDecayCross
)

func (k Kind) String() string {
	switch k {
	case KindNorm:
		return "norm"
	case KindDecaySingle:
		return "decay-single"
	case KindDecayCross:
		return "decay-cross"
	}
	return "raw"
}

// DecayLookupError reports a distance with no decay value.
type DecayLookupError struct {
	I, J     int
	Distance int
}

func (e *DecayLookupError) Error() string {
	return fmt.Sprintf("no decay value for distance %d (cell %d,%d)", e.Distance, e.I, e.J)
}

// BiasLookupError reports a bin with no bias value.
type BiasLookupError struct {
	// Side is 1 for rows and 2 for columns.
	Side int
	Bin  int
}

func (e *BiasLookupError) Error() string {
	return fmt.Sprintf("no bias value for bin %d on side %d", e.Bin, e.Side)
}

// Transform turns raw counts of a window into values of one mode. It is
// selected once per run.
type Transform struct {
	Mode Mode
	Kind Kind
	// Lenient makes lookup misses of decay transforms yield NaN instead of
	// an error. It is set for windows spanning several chromosomes, where
	// cross-chromosome distances are undefined.
	Lenient bool

	bias1, bias2 map[int]float64
	decay        map[int]float64
	off1, off2   int
	idx          *genome.Index
}

// NewTransform selects the transform of mode for window w.
func NewTransform(mode Mode, w *genome.Window, r *bias.Resolved, idx *genome.Index) *Transform {
	t := &Transform{
		Mode:    mode,
		Lenient: w.MultiChrom(),
		bias1:   r.Bias1,
		bias2:   r.Bias2,
		decay:   r.Decay,
		off1:    w.Coords.Start1,
		off2:    w.Coords.Start2,
		idx:     idx,
	}
	switch mode {
	case Norm:
		t.Kind = KindNorm
	case Decay:
		if w.Coords.Start1 == w.Coords.Start2 {
			t.Kind = KindDecaySingle
		} else {
			t.Kind = KindDecayCross
		}
	default:
		t.Kind = KindRaw
	}
	return t
}

func (t *Transform) normalize(i, j int, v float64) (float64, error) {
	b1, ok := t.bias1[i]
	if !ok {
		return 0, &BiasLookupError{1, i}
	}
	b2, ok := t.bias2[j]
	if !ok {
		return 0, &BiasLookupError{2, j}
	}
	return v / b1 / b2, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Apply returns the transformed value of the raw count v at local cell (i, j).
func (t *Transform) Apply(i, j, v int) (float64, error) {
	if t.Kind == KindRaw {
		return float64(v), nil
	}
	n, err := t.normalize(i, j, float64(v))
	if err != nil {
		if t.Lenient && t.Kind != KindNorm {
			return math.NaN(), nil
		}
		return 0, err
	}
	if t.Kind == KindNorm {
		return n, nil
	}
	gi, gj := i+t.off1, j+t.off2
	if t.Lenient && t.idx != nil && !t.idx.SameChrom(gi, gj) {
		return math.NaN(), nil
	}
	dist := abs(i - j)
	if t.Kind == KindDecayCross {
		dist = abs(gi - gj)
	}
	d, ok := t.decay[dist]
	if !ok {
		if t.Lenient {
			return math.NaN(), nil
		}
		return 0, &DecayLookupError{i, j, dist}
	}
	return n / d, nil
}
