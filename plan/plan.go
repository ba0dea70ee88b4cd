// Package plan splits a matrix window into chromosome-aligned scan chunks.
package plan

import (
	"fmt"

	"github.com/guigolab/bammatrix/genome"
	"github.com/guigolab/bammatrix/utils"
)

// MaxJobs bounds the number of strides the row range is divided into.
const MaxJobs = 100

// Chunk is a scan task over one chromosome. Start and End are 1-based closed
// base coordinates; FirstBin and LastBin are the chromosome-local bins whose
// reads the chunk owns.
type Chunk struct {
	Ref               string
	Start, End        int
	FirstBin, LastBin int
}

func (c Chunk) String() string {
	return fmt.Sprintf("%s:%d-%d", c.Ref, c.Start, c.End)
}

// Owns reports whether bin belongs to c.
func (c Chunk) Owns(bin int) bool {
	return c.FirstBin <= bin && bin <= c.LastBin
}

// QueryRange returns the 0-based half-open base interval to fetch from the
// alignment store.
func (c Chunk) QueryRange() (beg, end int) {
	return utils.Max(c.Start-1, 0), c.End
}

// Plan divides the rows of w into at most MaxJobs+1 strides of near-equal bin
// count. A stride crossing chromosome boundaries is split per chromosome: the
// piece closing a chromosome ends one bin-width past its padding slot and the
// piece opening the next one starts at offset 0. The last chunk end is
// extended by one base so the final nucleotide is included.
func Plan(idx *genome.Index, w *genome.Window) ([]Chunk, error) {
	bins := idx.Bins()
	start, end := w.Coords.Start1, utils.Min(w.Coords.End1, len(bins))
	if end <= start {
		return nil, &genome.RegionError{Region: w.Name, Reason: "no bins to scan"}
	}
	total := end - start + 1
	njobs := utils.Min(total, MaxJobs) + 1
	nbins := total/njobs + 1

	var chunks []Chunk
	for i := start; i < end; i += nbins {
		n := nbins
		if i+n > end {
			n = end - i
		}
		chunks = append(chunks, split(idx, bins[i:i+n])...)
	}
	chunks[len(chunks)-1].End++
	return chunks, nil
}

// split turns a stride of consecutive bins into one chunk per chromosome.
func split(idx *genome.Index, stride []genome.Bin) []Chunk {
	res := idx.Resolution()
	var chunks []Chunk
	first := 0
	for k := 1; k <= len(stride); k++ {
		if k < len(stride) && stride[k].Chrom == stride[first].Chrom {
			continue
		}
		beg, fin := stride[first], stride[k-1]
		c := Chunk{
			Ref:      beg.Chrom,
			Start:    beg.Offset * res,
			FirstBin: beg.Offset,
			LastBin:  fin.Offset,
		}
		if k < len(stride) {
			sec, _ := idx.Section(beg.Chrom)
			c.End = sec.Len()*res + res
		} else {
			c.End = fin.Offset*res + res - 1
		}
		chunks = append(chunks, c)
		first = k
	}
	return chunks
}
