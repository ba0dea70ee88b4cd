package genome

import "fmt"

// BinCoords are the global bin boundaries of a window: rows span
// [Start1, End1) and columns [Start2, End2).
type BinCoords struct {
	Start1, End1, Start2, End2 int
}

// Lookup maps a chromosome bin to its row or column in the window matrix.
type Lookup map[Bin]int

// Window is a region request resolved against an Index.
type Window struct {
	// Name identifies the window in output headers and file names.
	Name string
	// Regions lists the chromosomes whose reads are scanned.
	Regions    []string
	Coords     BinCoords
	Rows, Cols Lookup
	// TwoRegions is set when a distinct column region was requested.
	TwoRegions bool
}

// MultiChrom reports whether the window spans several chromosomes.
func (w *Window) MultiChrom() bool {
	return len(w.Regions) > 1
}

// Symmetric reports whether rows and columns cover the same bins.
func (w *Window) Symmetric() bool {
	c := w.Coords
	return c.Start1 == c.Start2 && c.End1 == c.End2
}

// NewWindow resolves req against idx.
func NewWindow(idx *Index, req Request) (*Window, error) {
	r1, r2 := req.Region1, req.Region2
	if r2.Chrom == "" && (r2.Start != nil || r2.End != nil) {
		return nil, &RegionError{r2.String(), "cannot use start/end without a chromosome"}
	}
	if r1.Chrom == "" {
		if r1.Start != nil || r1.End != nil {
			return nil, &RegionError{r1.String(), "cannot use start/end without a chromosome"}
		}
		if r2.Chrom != "" {
			return nil, &RegionError{r2.String(), "a second region requires a first one"}
		}
		return fullWindow(idx), nil
	}

	s1, e1, b1, err := resolve(idx, r1)
	if err != nil {
		return nil, err
	}
	w := &Window{
		Regions: []string{r1.Chrom},
		Coords:  BinCoords{s1, e1, s1, e1},
		Rows:    lookup(r1.Chrom, s1-idx.sections[r1.Chrom].Start, e1-idx.sections[r1.Chrom].Start),
	}
	res := idx.resolution
	switch {
	case r2.Chrom != "":
		s2, e2, b2, err := resolve(idx, r2)
		if err != nil {
			return nil, err
		}
		w.TwoRegions = true
		w.Coords.Start2, w.Coords.End2 = s2, e2
		w.Cols = lookup(r2.Chrom, s2-idx.sections[r2.Chrom].Start, e2-idx.sections[r2.Chrom].Start)
		w.Name = fmt.Sprintf("%s:%d-%d_%s:%d-%d", r1.Chrom, b1[0]/res, b1[1]/res, r2.Chrom, b2[0]/res, b2[1]/res)
	case r1.Start != nil:
		w.Cols = w.Rows
		w.Name = fmt.Sprintf("%s:%d-%d", r1.Chrom, b1[0]/res, b1[1]/res)
	default:
		w.Cols = w.Rows
		w.Name = r1.Chrom
	}
	return w, nil
}

func fullWindow(idx *Index) *Window {
	rows := make(Lookup, len(idx.bins))
	for i, b := range idx.bins {
		rows[b] = i
	}
	n := len(idx.bins)
	return &Window{
		Name:    "full",
		Regions: idx.names,
		Coords:  BinCoords{0, n, 0, n},
		Rows:    rows,
		Cols:    rows,
	}
}

// resolve returns the global bin range of r and its base boundaries.
func resolve(idx *Index, r Region) (start, end int, bases [2]int, err error) {
	sec, ok := idx.sections[r.Chrom]
	if !ok {
		return 0, 0, bases, &RegionError{r.Chrom, "chromosome not found"}
	}
	res := idx.resolution
	length := idx.lengths[r.Chrom]
	bases = [2]int{0, sec.Len() * res}
	if r.Start != nil {
		bases[0] = *r.Start
	}
	if r.End != nil {
		bases[1] = *r.End
		if bases[1] > length {
			return 0, 0, bases, &RegionError{r.String(), fmt.Sprintf("end beyond chromosome length %d", length)}
		}
	}
	if r.Start != nil && r.End != nil && bases[1]-bases[0] < res {
		return 0, 0, bases, &RegionError{r.String(), fmt.Sprintf("region should be at least as big as resolution %d", res)}
	}
	start = sec.Start + bases[0]/res
	end = sec.Start + bases[1]/res
	if end <= start {
		return 0, 0, bases, &RegionError{r.String(), "empty region"}
	}
	return start, end, bases, nil
}

// lookup enumerates the bins [from, to) of chrom.
func lookup(chrom string, from, to int) Lookup {
	l := make(Lookup, to-from)
	for i := from; i < to; i++ {
		l[Bin{chrom, i}] = i - from
	}
	return l
}
