package matrix

import (
	"strings"

	"github.com/guigolab/bammatrix/artifact"
	"github.com/guigolab/bammatrix/bias"
	"github.com/guigolab/bammatrix/contact"
	"github.com/guigolab/bammatrix/plan"
	log "github.com/sirupsen/logrus"
)

// Assembler reads back the artifacts of a run in chunk-plan order.
type Assembler struct {
	Store        *artifact.Store
	Chunks       []plan.Chunk
	Bads1, Bads2 bias.BinSet

	missing []plan.Chunk
}

// Stream calls fn for every cell not masked by a bad row or column. Chunks
// without an artifact are skipped and reported by Missing.
func (a *Assembler) Stream(fn func(i, j, raw int) error) error {
	a.missing = a.missing[:0]
	for _, c := range a.Chunks {
		ts, err := a.Store.Read(c.String())
		if err == artifact.ErrMissing {
			a.missing = append(a.missing, c)
			continue
		}
		if err != nil {
			return err
		}
		for _, t := range ts {
			if a.Bads1[t.I] || a.Bads2[t.J] {
				continue
			}
			if err := fn(t.I, t.J, t.Count); err != nil {
				return err
			}
		}
	}
	if len(a.missing) > 0 {
		names := make([]string, len(a.missing))
		for i, c := range a.missing {
			names[i] = c.String()
		}
		log.WithField("chunks", strings.Join(names, ",")).
			Warnf("%d out of %d chunks unavailable, matrix is incomplete", len(a.missing), len(a.Chunks))
	}
	return nil
}

// Missing returns the chunks without artifact found by the last Stream.
func (a *Assembler) Missing() []plan.Chunk {
	return a.missing
}

// Counts returns the raw counts of all unmasked cells.
func (a *Assembler) Counts() (contact.Counts, error) {
	c := contact.Counts{}
	err := a.Stream(func(i, j, raw int) error {
		c[contact.Pair{I: i, J: j}] += raw
		return nil
	})
	return c, err
}

// Matrix builds the in-memory matrix of tr.
func (a *Assembler) Matrix(name string, resolution int, tr *Transform) (*Matrix, error) {
	c, err := a.Counts()
	if err != nil {
		return nil, err
	}
	m := &Matrix{
		Name:       name,
		Resolution: resolution,
		Mode:       tr.Mode,
		Values:     make(map[contact.Pair]float64, len(c)),
		Bads1:      a.Bads1,
		Bads2:      a.Bads2,
	}
	for p, v := range c {
		if v == 0 {
			continue
		}
		x, err := tr.Apply(p.I, p.J, v)
		if err != nil {
			return nil, err
		}
		m.Values[p] = x
	}
	return m, nil
}

// Sink receives the transformed cells of one mode.
type Sink struct {
	Transform *Transform
	Writer    *ABCWriter
}

// WriteAll streams the artifacts once and writes every cell to all sinks.
func (a *Assembler) WriteAll(sinks []*Sink) error {
	return a.Stream(func(i, j, raw int) error {
		for _, s := range sinks {
			v, err := s.Transform.Apply(i, j, raw)
			if err != nil {
				return err
			}
			if err := s.Writer.Write(i, j, v); err != nil {
				return err
			}
		}
		return nil
	})
}
